package freebox

import (
	"bytes"
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func newTestCoordinator(t *testing.T, handler http.Handler) (*Coordinator, *Profile) {
	t.Helper()

	transport := newTestTransport(t, handler)
	profile := NewProfile(transport)
	return NewCoordinator(transport, profile, TimeoutPolicy{}, DefaultRetryPolicy()), profile
}

func sameEnvelope(a, b Envelope) bool {
	return a.Success == b.Success &&
		a.ErrorCode == b.ErrorCode &&
		a.Message == b.Message &&
		a.Timeout == b.Timeout &&
		bytes.Equal(a.Result, b.Result)
}

func TestCoordinator_SingleFlight(t *testing.T) {
	var attempts atomic.Int64
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api_version" {
			versionHandler("fbxgw7-r1/full").ServeHTTP(w, r)
			return
		}
		attempts.Add(1)
		time.Sleep(200 * time.Millisecond)
		writeEnvelope(w, map[string]any{"uptime": 7})
	}))

	var wg sync.WaitGroup
	results := make([]Envelope, 2)
	for i := range results {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			results[slot] = coord.Execute(context.Background(), http.MethodGet, "/system/", nil, false)
		}(i)
		// Stagger so the second call joins while the first is in flight.
		time.Sleep(50 * time.Millisecond)
	}
	wg.Wait()

	if n := attempts.Load(); n != 1 {
		t.Errorf("expected 1 network attempt for concurrent identical calls, got %d", n)
	}
	if !results[0].Success || !sameEnvelope(results[0], results[1]) {
		t.Errorf("concurrent callers must observe the identical envelope: %+v vs %+v", results[0], results[1])
	}
}

func TestCoordinator_DistinctKeysDontShare(t *testing.T) {
	var attempts atomic.Int64
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api_version" {
			versionHandler("fbxgw7-r1/full").ServeHTTP(w, r)
			return
		}
		attempts.Add(1)
		time.Sleep(100 * time.Millisecond)
		writeEnvelope(w, nil)
	}))

	var wg sync.WaitGroup
	for _, path := range []string{"/system/", "/connection/"} {
		wg.Add(1)
		go func(p string) {
			defer wg.Done()
			coord.Execute(context.Background(), http.MethodGet, p, nil, false)
		}(path)
	}
	wg.Wait()

	if n := attempts.Load(); n != 2 {
		t.Errorf("distinct paths must not share an attempt, got %d attempts", n)
	}
}

func TestCoordinator_SettlementRestartsDedup(t *testing.T) {
	var attempts atomic.Int64
	coord, _ := newTestCoordinator(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api_version" {
			versionHandler("fbxgw7-r1/full").ServeHTTP(w, r)
			return
		}
		attempts.Add(1)
		writeEnvelope(w, nil)
	}))

	coord.Execute(context.Background(), http.MethodGet, "/system/", nil, false)
	coord.Execute(context.Background(), http.MethodGet, "/system/", nil, false)

	if n := attempts.Load(); n != 2 {
		t.Errorf("sequential calls must each hit the network, got %d attempts", n)
	}
}

func TestCoordinator_RetriesSlowEndpointTimeouts(t *testing.T) {
	// Shrink the fixed slow-class deadline so every attempt times out fast.
	savedSlow, savedEndpoint := slowTimeout, slowEndpointTimeout
	slowTimeout, slowEndpointTimeout = 40*time.Millisecond, 40*time.Millisecond
	t.Cleanup(func() { slowTimeout, slowEndpointTimeout = savedSlow, savedEndpoint })

	var attempts atomic.Int64
	transport := newTestTransport(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api_version" {
			versionHandler("fbxgw-r1/full").ServeHTTP(w, r)
			return
		}
		attempts.Add(1)
		time.Sleep(300 * time.Millisecond)
		writeEnvelope(w, nil)
	}))
	profile := NewProfile(transport)
	profile.EnsureLoaded(context.Background())
	if !profile.SlowClass() {
		t.Fatal("fixture must classify as slow hardware")
	}

	coord := NewCoordinator(transport, profile, TimeoutPolicy{}, DefaultRetryPolicy())
	var slept []time.Duration
	coord.sleep = func(d time.Duration) { slept = append(slept, d) }

	env := coord.Execute(context.Background(), http.MethodGet, "/dhcp/dynamic_lease/", nil, false)

	if env.Success || !env.Timeout {
		t.Fatalf("expected a timed-out envelope after exhausting retries, got %+v", env)
	}
	if n := attempts.Load(); n != 3 {
		t.Errorf("expected 3 attempts (1 initial + 2 retries), got %d", n)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(slept) != len(want) || slept[0] != want[0] || slept[1] != want[1] {
		t.Errorf("backoff sleeps = %v, want %v", slept, want)
	}
}

func TestCoordinator_NoRetryOnNormalClass(t *testing.T) {
	var attempts atomic.Int64
	transport := newTestTransport(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api_version" {
			versionHandler("fbxgw8-r1/full").ServeHTTP(w, r)
			return
		}
		attempts.Add(1)
		time.Sleep(300 * time.Millisecond)
		writeEnvelope(w, nil)
	}))
	profile := NewProfile(transport)
	profile.EnsureLoaded(context.Background())

	coord := NewCoordinator(transport, profile, TimeoutPolicy{Default: 40 * time.Millisecond}, DefaultRetryPolicy())
	var sleeps atomic.Int64
	coord.sleep = func(time.Duration) { sleeps.Add(1) }

	env := coord.Execute(context.Background(), http.MethodGet, "/dhcp/dynamic_lease/", nil, false)

	if !env.Timeout {
		t.Fatalf("expected timeout envelope, got %+v", env)
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("normal hardware must never retry, got %d attempts", n)
	}
	if sleeps.Load() != 0 {
		t.Error("no backoff sleep expected when retry is ineligible")
	}
}

func TestCoordinator_NoRetryOnApplicationError(t *testing.T) {
	var attempts atomic.Int64
	transport := newTestTransport(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api_version" {
			versionHandler("fbxgw-r1/full").ServeHTTP(w, r)
			return
		}
		attempts.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		//nolint:errcheck
		w.Write([]byte(`{"success":false,"error_code":"insufficient_rights","msg":"denied"}`))
	}))
	profile := NewProfile(transport)
	profile.EnsureLoaded(context.Background())

	coord := NewCoordinator(transport, profile, TimeoutPolicy{}, DefaultRetryPolicy())

	env := coord.Execute(context.Background(), http.MethodGet, "/dhcp/dynamic_lease/", nil, false)

	if env.ErrorCode != ErrCodeInsufficientRights {
		t.Fatalf("expected insufficient_rights passthrough, got %+v", env)
	}
	if n := attempts.Load(); n != 1 {
		t.Errorf("application errors must never retry, got %d attempts", n)
	}
}
