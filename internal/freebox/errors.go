package freebox

import "errors"

// Domain-specific errors for the router client.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrNoCredential is returned by Login when no app token is stored.
	// Registration must complete (and be approved on the router) first.
	ErrNoCredential = errors.New("freebox: no stored credential, register the application first")

	// ErrRegistrationFailed is returned when the router rejects a
	// registration request.
	ErrRegistrationFailed = errors.New("freebox: registration failed")

	// ErrChallengeFetch is returned when the fresh challenge fetch that
	// precedes every login fails. Login aborts without attempting the
	// session request.
	ErrChallengeFetch = errors.New("freebox: fetching login challenge failed")

	// ErrLoginFailed is returned when the router rejects the computed
	// password or the session response cannot be decoded.
	ErrLoginFailed = errors.New("freebox: login failed")
)
