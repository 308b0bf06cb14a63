package freebox

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"
)

func versionHandler(boxModel string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		//nolint:errcheck
		w.Write([]byte(`{"box_model":"` + boxModel + `","api_version":"8.0"}`))
	})
}

func TestProfile_SlowClassBeforeLoad(t *testing.T) {
	transport := newTestTransport(t, versionHandler("fbxgw-r1/full"))
	profile := NewProfile(transport)

	if profile.SlowClass() {
		t.Error("unloaded profile must classify as normal")
	}
	if profile.Model() != "" {
		t.Error("unloaded profile must report empty model")
	}
}

func TestProfile_Classification(t *testing.T) {
	tests := []struct {
		boxModel string
		slow     bool
	}{
		{"fbxgw-r1/full", true},
		{"fbxgw-r2/mini", true},
		{"FBXGW-R2/FULL", true},
		{"fbxgw7-r1/full", false},
		{"fbxgw8-r1/full", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.boxModel, func(t *testing.T) {
			transport := newTestTransport(t, versionHandler(tt.boxModel))
			profile := NewProfile(transport)
			profile.EnsureLoaded(context.Background())

			if got := profile.SlowClass(); got != tt.slow {
				t.Errorf("SlowClass() for %q = %v, want %v", tt.boxModel, got, tt.slow)
			}
			if got := profile.Model(); got != tt.boxModel {
				t.Errorf("Model() = %q, want %q", got, tt.boxModel)
			}
		})
	}
}

func TestProfile_FetchOnce(t *testing.T) {
	var fetches atomic.Int64
	transport := newTestTransport(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		versionHandler("fbxgw-r2/full").ServeHTTP(w, r)
	}))
	profile := NewProfile(transport)

	profile.EnsureLoaded(context.Background())
	profile.EnsureLoaded(context.Background())
	profile.EnsureLoaded(context.Background())

	if n := fetches.Load(); n != 1 {
		t.Errorf("expected 1 discovery fetch, got %d", n)
	}
}

func TestProfile_BackgroundFetchRearmsAfterFailure(t *testing.T) {
	var calls atomic.Int64
	transport := newTestTransport(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		versionHandler("fbxgw-r1/full").ServeHTTP(w, r)
	}))
	profile := NewProfile(transport)

	// The first background fetch fails; subsequent uses must arm a new
	// fetch rather than staying normal-class for the process lifetime.
	deadline := time.Now().Add(5 * time.Second)
	for !profile.SlowClass() {
		if time.Now().After(deadline) {
			t.Fatal("profile never reached the slow classification after a failed first fetch")
		}
		profile.loadInBackground()
		time.Sleep(10 * time.Millisecond)
	}

	if n := calls.Load(); n < 2 {
		t.Errorf("expected at least 2 discovery attempts, got %d", n)
	}
	if got := profile.Model(); got != "fbxgw-r1/full" {
		t.Errorf("Model() = %q, want fbxgw-r1/full", got)
	}
}

func TestProfile_FailedFetchRetriesNextCall(t *testing.T) {
	var calls atomic.Int64
	transport := newTestTransport(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		versionHandler("fbxgw-r1/full").ServeHTTP(w, r)
	}))
	profile := NewProfile(transport)

	profile.EnsureLoaded(context.Background())
	if profile.SlowClass() {
		t.Error("failed fetch must leave the profile in the normal class")
	}

	profile.EnsureLoaded(context.Background())
	if !profile.SlowClass() {
		t.Error("second fetch should have loaded the slow classification")
	}
	if n := calls.Load(); n != 2 {
		t.Errorf("expected 2 discovery attempts, got %d", n)
	}
}
