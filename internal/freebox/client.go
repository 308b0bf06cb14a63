package freebox

import (
	"context"
	"fmt"
	"time"

	"github.com/nerrad567/netpanel/internal/infrastructure/config"
	"github.com/nerrad567/netpanel/internal/infrastructure/logging"
)

// Client is the public operation surface over the router API. Every
// authenticated call flows through the session token source and the
// single-flight coordinator.
//
// Construct one Client per process at the composition root via New.
// There is no package-level state; a fake transport slots in for tests
// through the exported component constructors.
type Client struct {
	store     *CredentialStore
	transport *Transport
	profile   *Profile
	auth      *Authenticator
	coord     *Coordinator
	logger    *logging.Logger
}

// New assembles a client from configuration by explicit dependency
// injection: credential store, transport (with instance-scoped TLS
// trust), device profile, timing policies, coordinator and authenticator.
func New(cfg config.RouterConfig, logger *logging.Logger) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	store := NewCredentialStore(cfg.CredentialPath)
	if _, err := store.Load(); err != nil {
		return nil, fmt.Errorf("loading credential: %w", err)
	}

	transport, err := NewTransport(cfg.Host, cfg.APIBase, cfg.CACertFile)
	if err != nil {
		return nil, fmt.Errorf("creating transport: %w", err)
	}

	profile := NewProfile(transport)

	timeouts := TimeoutPolicy{}
	if cfg.Timeouts.Default > 0 {
		timeouts.Default = time.Duration(cfg.Timeouts.Default) * time.Millisecond
	}

	retries := DefaultRetryPolicy()
	if len(cfg.Retry.BackoffMS) > 0 {
		schedule := make([]time.Duration, len(cfg.Retry.BackoffMS))
		for i, ms := range cfg.Retry.BackoffMS {
			schedule[i] = time.Duration(ms) * time.Millisecond
		}
		retries = RetryPolicy{Backoff: schedule}
	}

	auth := NewAuthenticator(store, transport, AppIdentity{
		ID:         cfg.App.ID,
		Name:       cfg.App.Name,
		Version:    cfg.App.Version,
		DeviceName: cfg.App.DeviceName,
	})
	transport.SetTokenFunc(auth.SessionToken)

	return &Client{
		store:     store,
		transport: transport,
		profile:   profile,
		auth:      auth,
		coord:     NewCoordinator(transport, profile, timeouts, retries),
		logger:    logger.With("component", "freebox"),
	}, nil
}

// Execute runs an authenticated operation against the router.
//
// The session token, when one is held, rides on the request; deduplication,
// deadlines and retries apply per the coordinator. On a session-expired
// response the local session is cleared and the envelope returned as-is:
// re-authentication is a deliberate, user-visible action, never an
// automatic retry.
func (c *Client) Execute(ctx context.Context, method, path string, body any) Envelope {
	env := c.coord.Execute(ctx, method, path, body, true)
	if env.AuthRequired() {
		c.auth.ClearSession()
		c.logger.Warn("router session expired",
			"method", method,
			"path", path,
			"error_code", env.ErrorCode,
		)
	}
	return env
}

// Auth exposes the session authenticator for the registration and login
// flows driven by the dashboard API.
func (c *Client) Auth() *Authenticator {
	return c.auth
}

// Credentials exposes the credential store (reset, path inspection).
func (c *Client) Credentials() *CredentialStore {
	return c.store
}

// Profile exposes the device profile (model, timing class).
func (c *Client) Profile() *Profile {
	return c.profile
}
