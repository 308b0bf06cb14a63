package freebox

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// Coordinator wraps the Transport with the timeout and retry policies and
// guarantees at most one in-flight network attempt sequence per logical
// operation at any instant.
//
// The dedup key is method + ":" + path. The request body is deliberately
// not part of the key: two different bodies posted concurrently to the
// same endpoint collapse into one attempt and share its result. That is
// safe for the idempotent polling reads this backend issues and unsafe
// for parameterised writes — callers issuing those must serialise them
// themselves.
type Coordinator struct {
	transport *Transport
	profile   *Profile
	timeouts  TimeoutPolicy
	retries   RetryPolicy

	group singleflight.Group

	// sleep is time.Sleep unless a test injects a stub.
	sleep func(time.Duration)
}

// NewCoordinator assembles a coordinator over the given transport,
// profile and policies.
func NewCoordinator(transport *Transport, profile *Profile, timeouts TimeoutPolicy, retries RetryPolicy) *Coordinator {
	return &Coordinator{
		transport: transport,
		profile:   profile,
		timeouts:  timeouts,
		retries:   retries,
		sleep:     time.Sleep,
	}
}

// Execute runs one logical operation. Concurrent callers with the same
// method and path share a single attempt sequence and observe the
// identical Envelope. The in-flight entry is removed once the attempt
// settles — success and failure alike — so a later identical call starts
// a fresh attempt; nothing is cached.
func (c *Coordinator) Execute(ctx context.Context, method, path string, body any, authenticated bool) Envelope {
	key := method + ":" + path

	v, _, _ := c.group.Do(key, func() (any, error) {
		return c.attempt(ctx, method, path, body, authenticated), nil
	})

	env, ok := v.(Envelope)
	if !ok {
		return failure(ErrCodeRequestFailed, "internal: unexpected in-flight result type")
	}
	return env
}

// attempt issues the network attempt sequence: one send plus, for timed
// out calls the retry policy accepts, further sends after the scheduled
// backoff. An explicit loop, not recursion, so the schedule is bounded
// and testable.
func (c *Coordinator) attempt(ctx context.Context, method, path string, body any, authenticated bool) Envelope {
	// Kick off hardware identification on first use; classification
	// reads whatever has loaded so far and never blocks.
	c.profile.loadInBackground()

	slowClass := c.profile.SlowClass()
	deadline := c.timeouts.DeadlineFor(path, slowClass)
	remaining := c.retries.MaxRetries()

	for {
		env := c.transport.Send(ctx, method, path, body, authenticated, deadline)
		if env.Success || !env.Timeout {
			return env
		}
		if !c.retries.ShouldRetry(path, slowClass, remaining, env.Timeout) {
			return env
		}
		c.sleep(c.retries.BackoffFor(remaining))
		remaining--
	}
}
