// Package scoring is the HTTP client for the HireLens scoring service.
//
// The service does all frame analysis, transcription and scoring; this package
// only moves data. Client wraps three resty clients that share one transport:
// an authenticated client with the configured RetryPolicy for questions, audio
// and stop calls, an authenticated single-shot client for best-effort frame
// uploads, and an unauthenticated client for the login bootstrap and
// reachability checks. The bearer token comes from an auth.Context through
// oauth2.Transport; a 401 answer clears that context.
//
// Errors carry the services markers: transport failures and 5xx answers are
// ErrNetworkUnavailable, malformed payloads and other 4xx answers are
// ErrInvalidResponse, and 401 is ErrUnauthorized.
package scoring
