package freebox

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"strings"
	"time"
)

// authHeader carries the session token on authenticated requests.
const authHeader = "X-Fbx-App-Auth"

// maxResponseBody bounds response reads. Router envelopes are small; the
// limit only matters when a captive portal or error page answers instead.
const maxResponseBody = 4 << 20

// TokenFunc returns the current session token, or "" when no session is
// held. The Authenticator provides the implementation; the indirection
// breaks the construction cycle between the two.
type TokenFunc func() string

// VersionInfo is the discovery document served unauthenticated at
// /api_version on the server root. It predates the envelope wrapper and
// is the one response the router returns as a bare JSON object.
type VersionInfo struct {
	BoxModel     string `json:"box_model"`
	BoxModelName string `json:"box_model_name"`
	APIVersion   string `json:"api_version"`
	APIBaseURL   string `json:"api_base_url"`
	DeviceName   string `json:"device_name"`
}

// Transport issues single HTTP requests against the router and normalises
// every outcome into an Envelope. Send never returns a Go error: success,
// HTTP errors, malformed bodies, timeouts and connection failures all
// become envelopes, with Timeout set only when the per-request deadline
// was the cause.
//
// TLS trust for the router's self-signed certificate is scoped to this
// instance's http.Client: either a configured PEM file pins the root, or
// verification is skipped for this client alone. Process-wide TLS
// settings are never touched, so unrelated outbound connections keep full
// verification.
type Transport struct {
	rootURL string // scheme://host, for the unversioned discovery endpoint
	baseURL string // rootURL + API base, no trailing slash
	client  *http.Client
	token   TokenFunc
}

// NewTransport creates a transport for the router at host (hostname or
// host:port), with API paths resolved under apiBase (e.g. "/api/v8").
// caCertFile optionally pins the router's certificate; when empty,
// verification is disabled for this one client.
func NewTransport(host, apiBase, caCertFile string) (*Transport, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}

	if caCertFile != "" {
		pem, err := os.ReadFile(caCertFile)
		if err != nil {
			return nil, fmt.Errorf("reading router certificate: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", caCertFile)
		}
		tlsCfg.RootCAs = pool
	} else {
		// The router ships a self-signed certificate. Trust is limited to
		// this client instance.
		tlsCfg.InsecureSkipVerify = true // #nosec G402 -- scoped to the router client only
	}

	rootURL := "https://" + host
	return &Transport{
		rootURL: rootURL,
		baseURL: rootURL + strings.TrimRight(apiBase, "/"),
		client: &http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsCfg},
		},
	}, nil
}

// SetTokenFunc wires the session token source. Called once during client
// assembly, before any request is issued.
func (t *Transport) SetTokenFunc(fn TokenFunc) {
	t.token = fn
}

// Send issues one request under the API base with the given deadline.
//
// The request carries a JSON content type and, when authenticated and a
// session token exists, the X-Fbx-App-Auth header. A non-JSON response
// content type yields an invalid_response envelope without parsing the
// body. Every transport-level failure is caught and converted; nothing
// propagates to the caller as a Go error.
func (t *Transport) Send(ctx context.Context, method, path string, body any, authenticated bool, deadline time.Duration) Envelope {
	reqCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return failure(ErrCodeRequestFailed, fmt.Sprintf("encoding request body: %v", err))
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, t.baseURL+path, reader)
	if err != nil {
		return failure(ErrCodeRequestFailed, fmt.Sprintf("building request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")

	if authenticated && t.token != nil {
		if tok := t.token(); tok != "" {
			req.Header.Set(authHeader, tok)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if isDeadline(reqCtx, err) {
			return timeoutFailure(fmt.Sprintf("%s %s timed out after %v", method, path, deadline))
		}
		return failure(ErrCodeRequestFailed, err.Error())
	}
	defer resp.Body.Close() //nolint:errcheck // Best-effort close on read path

	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, mimeErr := mime.ParseMediaType(contentType); mimeErr != nil || mediaType != "application/json" {
		// Firmware error pages and captive portals answer with HTML; the
		// raw body must not reach the JSON decoder.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody)) //nolint:errcheck // Drain for connection reuse
		return failure(ErrCodeInvalidResponse, fmt.Sprintf("unexpected content type %q", contentType))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		if isDeadline(reqCtx, err) {
			return timeoutFailure(fmt.Sprintf("%s %s timed out after %v", method, path, deadline))
		}
		return failure(ErrCodeRequestFailed, fmt.Sprintf("reading response: %v", err))
	}

	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return failure(ErrCodeInvalidResponse, fmt.Sprintf("decoding response: %v", err))
	}

	// HTTP-level errors without a parseable error code still need one.
	if !env.Success && env.ErrorCode == "" {
		env.ErrorCode = ErrCodeRequestFailed
		if env.Message == "" {
			env.Message = fmt.Sprintf("router returned HTTP %d", resp.StatusCode)
		}
	}
	return env
}

// FetchVersion retrieves the discovery document from the server root.
// Only the Profile consumes this; failures there degrade the device to
// the normal timing class instead of propagating.
func (t *Transport) FetchVersion(ctx context.Context, deadline time.Duration) (*VersionInfo, error) {
	reqCtx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, t.rootURL+"/api_version", nil)
	if err != nil {
		return nil, fmt.Errorf("building version request: %w", err)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching version info: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // Best-effort close on read path

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("version endpoint returned HTTP %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if mediaType, _, mimeErr := mime.ParseMediaType(contentType); mimeErr != nil || mediaType != "application/json" {
		// Same guard as Send: captive portals answer the discovery
		// endpoint with HTML too.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody)) //nolint:errcheck // Drain for connection reuse
		return nil, fmt.Errorf("unexpected content type %q from version endpoint", contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("reading version info: %w", err)
	}

	var info VersionInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("decoding version info: %w", err)
	}
	return &info, nil
}

// isDeadline reports whether err was caused by the per-request deadline
// rather than a network-level failure.
func isDeadline(ctx context.Context, err error) bool {
	return errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(ctx.Err(), context.DeadlineExceeded)
}
