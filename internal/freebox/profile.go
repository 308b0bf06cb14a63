package freebox

import (
	"context"
	"strings"
	"sync"
	"time"
)

// slowClassMarkers identify the legacy hardware generation whose API is
// measurably slower on a subset of endpoints. Matched case-insensitively
// as substrings of the box_model identifier.
var slowClassMarkers = []string{
	"fbxgw-r1",
	"fbxgw-r2",
}

// versionFetchTimeout bounds the one-time discovery fetch.
const versionFetchTimeout = 10 * time.Second

// Profile caches hardware identification fetched once from the
// unauthenticated discovery endpoint and classifies the device into a
// slow or normal timing class.
//
// Classification degrades gracefully: until the fetch has completed,
// SlowClass reports false and the device gets normal-class timing.
// Callers never block on identification.
type Profile struct {
	transport *Transport

	mu       sync.RWMutex
	loaded   bool
	fetching bool
	model    string
}

// NewProfile creates an unloaded profile over the given transport.
func NewProfile(transport *Transport) *Profile {
	return &Profile{transport: transport}
}

// EnsureLoaded fetches and caches device identification if it has not
// been fetched yet. A failed fetch leaves the profile unloaded; the next
// EnsureLoaded call tries again.
func (p *Profile) EnsureLoaded(ctx context.Context) {
	p.mu.RLock()
	loaded := p.loaded
	p.mu.RUnlock()
	if loaded {
		return
	}

	info, err := p.transport.FetchVersion(ctx, versionFetchTimeout)
	if err != nil {
		return
	}

	p.mu.Lock()
	p.model = info.BoxModel
	p.loaded = true
	p.mu.Unlock()
}

// loadInBackground starts the identification fetch without blocking the
// caller. The coordinator triggers this on every use; at most one fetch
// runs at a time, and a failed fetch re-arms so the next use tries
// again. Once loaded, this is a cheap read-and-return.
func (p *Profile) loadInBackground() {
	p.mu.Lock()
	if p.loaded || p.fetching {
		p.mu.Unlock()
		return
	}
	p.fetching = true
	p.mu.Unlock()

	go func() {
		p.EnsureLoaded(context.Background())

		p.mu.Lock()
		p.fetching = false
		p.mu.Unlock()
	}()
}

// Model returns the cached hardware identifier, or "" when not yet loaded.
func (p *Profile) Model() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

// SlowClass reports whether the device belongs to the slow hardware
// generation. Returns false, not "unknown", while identification has not
// loaded.
func (p *Profile) SlowClass() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if !p.loaded {
		return false
	}
	model := strings.ToLower(p.model)
	for _, marker := range slowClassMarkers {
		if strings.Contains(model, marker) {
			return true
		}
	}
	return false
}
