package freebox

import (
	"strings"
	"time"
)

// Timing defaults. The slow values exist because the legacy hardware
// generation is measurably slower on specific endpoint families: a long
// timeout applied universally would mask genuine failures, while the
// short default applied universally produces false timeouts on that
// hardware.
// DefaultTimeout applies to every request on normal-class hardware
// unless configuration overrides it.
const DefaultTimeout = 10 * time.Second

// Slow-class deadlines are fixed, not configurable. Variables so tests
// can shrink them.
var (
	// slowTimeout applies on slow-class hardware for paths outside the
	// slow-endpoint set.
	slowTimeout = 25 * time.Second

	// slowEndpointTimeout applies on slow-class hardware for the endpoint
	// families known to be slow there.
	slowEndpointTimeout = 45 * time.Second
)

// slowEndpointFragments is the allow-list of path fragments identifying
// the endpoint families that are slow on legacy hardware. Matched by
// substring against the operation path.
var slowEndpointFragments = []string{
	"/dhcp/dynamic_lease",
	"/dhcp/static_lease",
	"/lan/browser",
	"/call/log",
	"/storage/disk",
}

// isSlowEndpoint reports whether path belongs to a slow endpoint family.
func isSlowEndpoint(path string) bool {
	for _, fragment := range slowEndpointFragments {
		if strings.Contains(path, fragment) {
			return true
		}
	}
	return false
}

// TimeoutPolicy resolves the deadline to apply before issuing a request,
// from the operation path and the device hardware class.
type TimeoutPolicy struct {
	// Default is the normal-class deadline. Zero means DefaultTimeout.
	Default time.Duration
}

// DeadlineFor returns the deadline for one request.
func (tp TimeoutPolicy) DeadlineFor(path string, slowClass bool) time.Duration {
	if !slowClass {
		if tp.Default > 0 {
			return tp.Default
		}
		return DefaultTimeout
	}
	if isSlowEndpoint(path) {
		return slowEndpointTimeout
	}
	return slowTimeout
}

// RetryPolicy decides whether a failed attempt is retried and with what
// backoff. Retry is deliberately narrow: only timeouts, only on slow-class
// hardware, only for slow-endpoint paths. HTTP and application errors
// (auth_required, insufficient_rights, ...) are never retried — the
// outcome would not change and a retry could mask permission problems.
type RetryPolicy struct {
	// Backoff is the delay schedule, one entry per permitted retry,
	// indexed from the end: with len(Backoff) attempts remaining the
	// first entry applies.
	Backoff []time.Duration
}

// DefaultRetryPolicy returns the stock schedule: two retries after the
// first attempt, sleeping 1s then 2s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Backoff: []time.Duration{time.Second, 2 * time.Second}}
}

// MaxRetries is the number of retries permitted after the first attempt.
func (rp RetryPolicy) MaxRetries() int {
	return len(rp.Backoff)
}

// ShouldRetry reports whether a failed attempt may be retried. All
// conditions must hold: slow hardware class, slow-endpoint path, the
// failure was a timeout, and attempts remain.
func (rp RetryPolicy) ShouldRetry(path string, slowClass bool, remaining int, wasTimeout bool) bool {
	return slowClass && wasTimeout && remaining > 0 && isSlowEndpoint(path)
}

// BackoffFor returns the delay to sleep before the retry that leaves
// remaining-1 attempts: with the default schedule, 1s with two remaining
// and 2s with one remaining.
func (rp RetryPolicy) BackoffFor(remaining int) time.Duration {
	idx := len(rp.Backoff) - remaining
	if idx < 0 || idx >= len(rp.Backoff) {
		return 0
	}
	return rp.Backoff[idx]
}
