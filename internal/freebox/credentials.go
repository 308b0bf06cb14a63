package freebox

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Credential file permission constants.
const (
	// credentialDirPerm is the permission mode for created parent directories.
	credentialDirPerm = 0750

	// credentialFilePerm keeps the app token readable by the owner only.
	credentialFilePerm = 0600

	// markerWalkDepth bounds the upward walk when resolving a relative
	// credential path against the project root.
	markerWalkDepth = 10

	// projectMarker identifies the project root during the upward walk.
	projectMarker = "go.mod"
)

// Credential is the long-lived application token issued by the router at
// registration. It is the sole piece of client state that survives process
// restarts, persisted as JSON {"appToken": "..."}.
type Credential struct {
	AppToken string `json:"appToken"`
}

// CredentialStore loads, persists and resets the application credential on
// local disk. It is the exclusive owner of the credential: every other
// component reads the token through it.
//
// Thread Safety:
//   - All methods are safe for concurrent use from multiple goroutines.
type CredentialStore struct {
	path string

	mu   sync.RWMutex
	cred *Credential
}

// NewCredentialStore creates a store backed by the given path.
//
// A relative path is resolved against the nearest ancestor directory of
// the working directory that contains a project marker (go.mod), walking
// at most ten levels up, falling back to the working directory itself.
// This tolerates the process being launched from a subdirectory of the
// deployment tree.
func NewCredentialStore(configuredPath string) *CredentialStore {
	return &CredentialStore{path: resolveCredentialPath(configuredPath)}
}

// resolveCredentialPath resolves a possibly-relative credential path.
func resolveCredentialPath(configured string) string {
	if filepath.IsAbs(configured) {
		return configured
	}

	cwd, err := os.Getwd()
	if err != nil {
		return configured
	}

	dir := cwd
	for i := 0; i < markerWalkDepth; i++ {
		if _, err := os.Stat(filepath.Join(dir, projectMarker)); err == nil {
			return filepath.Join(dir, configured)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return filepath.Join(cwd, configured)
}

// Load reads the credential file into memory.
//
// Returns:
//   - (nil, nil) when no credential file exists (unregistered)
//   - (*Credential, nil) on success
//   - (nil, error) when the file exists but cannot be read or parsed
func (s *CredentialStore) Load() (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.cred = nil
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading credential file: %w", err)
	}

	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return nil, fmt.Errorf("parsing credential file: %w", err)
	}

	s.cred = &Credential{AppToken: cred.AppToken}
	return &cred, nil
}

// Save persists a freshly issued app token, creating any missing parent
// directory first. The in-memory credential is updated on success.
func (s *CredentialStore) Save(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), credentialDirPerm); err != nil {
		return fmt.Errorf("creating credential directory: %w", err)
	}

	data, err := json.Marshal(Credential{AppToken: token})
	if err != nil {
		return fmt.Errorf("encoding credential: %w", err)
	}

	if err := os.WriteFile(s.path, data, credentialFilePerm); err != nil {
		return fmt.Errorf("writing credential file: %w", err)
	}

	s.cred = &Credential{AppToken: token}
	return nil
}

// Reset deletes the backing file if present and clears the in-memory
// credential. Idempotent: resetting an already-absent credential is not
// an error.
func (s *CredentialStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cred = nil
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing credential file: %w", err)
	}
	return nil
}

// AppToken returns the in-memory app token, or "" when unregistered.
// Purely a memory read; Load populates the store at client assembly.
func (s *CredentialStore) AppToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return ""
	}
	return s.cred.AppToken
}

// Path returns the resolved filesystem path of the credential file.
func (s *CredentialStore) Path() string {
	return s.path
}
