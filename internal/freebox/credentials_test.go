package freebox

import (
	"os"
	"path/filepath"
	"testing"
)

// chdir switches the working directory for the duration of the test,
// restoring the original on cleanup (t.Chdir needs Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	orig, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(orig); err != nil {
			t.Fatalf("restoring cwd: %v", err)
		}
	})
}

func TestCredentialStore_SaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app_token.json")
	store := NewCredentialStore(path)

	if err := store.Save("tok-secret"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	// A fresh store over the same path must read the token back.
	reload := NewCredentialStore(path)
	cred, err := reload.Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cred == nil || cred.AppToken != "tok-secret" {
		t.Fatalf("Load() = %+v, want token tok-secret", cred)
	}
	if got := reload.AppToken(); got != "tok-secret" {
		t.Errorf("AppToken() = %q, want tok-secret", got)
	}
}

func TestCredentialStore_LoadMissingFile(t *testing.T) {
	store := NewCredentialStore(filepath.Join(t.TempDir(), "absent.json"))

	cred, err := store.Load()
	if err != nil {
		t.Fatalf("Load() on missing file: %v", err)
	}
	if cred != nil {
		t.Errorf("Load() = %+v, want nil for missing file", cred)
	}
	if store.AppToken() != "" {
		t.Error("AppToken() must be empty for missing file")
	}
}

func TestCredentialStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.json")
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	store := NewCredentialStore(path)
	if _, err := store.Load(); err == nil {
		t.Fatal("expected error for corrupt credential file")
	}
}

func TestCredentialStore_ResetIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app_token.json")
	store := NewCredentialStore(path)

	if err := store.Save("tok"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	if err := store.Reset(); err != nil {
		t.Fatalf("Reset() error: %v", err)
	}
	if store.AppToken() != "" {
		t.Error("AppToken() must be empty after reset")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("credential file must be gone after reset")
	}

	// Second reset on an absent file is not an error.
	if err := store.Reset(); err != nil {
		t.Fatalf("second Reset() error: %v", err)
	}
}

func TestCredentialStore_FilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app_token.json")
	store := NewCredentialStore(path)

	if err := store.Save("tok"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("credential file mode = %o, want 0600", perm)
	}
}

func TestResolveCredentialPath(t *testing.T) {
	t.Run("absolute path untouched", func(t *testing.T) {
		abs := filepath.Join(t.TempDir(), "token.json")
		if got := resolveCredentialPath(abs); got != abs {
			t.Errorf("resolveCredentialPath(%q) = %q", abs, got)
		}
	})

	t.Run("relative path anchors at marker", func(t *testing.T) {
		root := t.TempDir()
		if err := os.WriteFile(filepath.Join(root, "go.mod"), []byte("module example\n"), 0600); err != nil {
			t.Fatalf("writing marker: %v", err)
		}
		sub := filepath.Join(root, "a", "b")
		if err := os.MkdirAll(sub, 0750); err != nil {
			t.Fatalf("creating subdir: %v", err)
		}
		chdir(t, sub)

		// Derive the expected root from the working directory so symlinked
		// temp dirs compare equal.
		cwd, err := os.Getwd()
		if err != nil {
			t.Fatalf("getwd: %v", err)
		}
		got := resolveCredentialPath(filepath.Join("data", "token.json"))
		want := filepath.Join(filepath.Dir(filepath.Dir(cwd)), "data", "token.json")
		if got != want {
			t.Errorf("resolveCredentialPath() = %q, want %q", got, want)
		}
	})

	t.Run("relative path without marker falls back to cwd", func(t *testing.T) {
		dir := t.TempDir()
		chdir(t, dir)

		got := resolveCredentialPath("token.json")
		if filepath.Dir(got) == "" || !filepath.IsAbs(got) {
			t.Errorf("resolveCredentialPath() = %q, want absolute path under cwd", got)
		}
	})
}
