// Package freebox implements the client for the router's local HTTP API.
//
// The router exposes its API over HTTPS with a self-signed certificate and
// authenticates applications with a two-step flow: a one-time registration
// that the user approves on the router's front panel (yielding a long-lived
// app token), then a challenge-response login that trades the app token for
// a short-lived session token.
//
// # Components
//
//   - CredentialStore: loads and persists the app token on local disk
//   - Transport: issues single HTTP requests and normalises every outcome
//     (success, HTTP error, malformed body, timeout, connection failure)
//     into an Envelope
//   - Profile: caches hardware identification and classifies the device
//     into a slow or normal timing class
//   - TimeoutPolicy / RetryPolicy: per-path deadlines and timeout-only
//     retry with a backoff schedule, both adapted to the hardware class
//   - Coordinator: single-flight deduplication of concurrent calls to the
//     same method and path
//   - Authenticator: the registration/login state machine and session
//     lifecycle
//   - Client: the public facade routing every call through the session
//     token and the coordinator
//
// # Error model
//
// Transport, Coordinator and Client never return Go errors for network or
// application failures; every outcome is an Envelope with Success false
// and an error code. Only programmer errors (logging in without a stored
// credential) surface as Go errors, from the Authenticator directly.
//
// # Usage
//
//	client, err := freebox.New(cfg.Router, logger)
//	if err != nil { ... }
//	env := client.Execute(ctx, http.MethodGet, "/system/", nil)
//	if env.AuthRequired() {
//	    // session expired: re-login is a deliberate caller action
//	}
package freebox
