// Package auth holds the client's authentication state.
//
// Context is the single source of the bearer token: it is seeded from the
// HIRELENS_TOKEN override or the on-disk FileTokenStore, exposes the token to
// HTTP clients as an oauth2.TokenSource, and is cleared when the scoring
// service answers 401. Claims are decoded from the JWT payload without
// verification; the server remains the authority and the client only reads
// expiry and display name. CallbackListener receives the redirect the backend
// issues at the end of the OAuth flow.
package auth
