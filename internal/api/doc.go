// Package api provides the HTTP API server for the netpanel dashboard.
//
// The server exposes a JSON REST API on /api/v1 for the browser UI:
// registration and session management for the router client, a status
// summary, and the collected sample history. A liveness endpoint is
// served at /healthz for container probes.
//
// The server uses chi for routing with middleware for request IDs,
// logging, panic recovery, CORS, and request body size limits. The API
// is unauthenticated; it is intended to be reachable only on the home
// LAN.
package api
