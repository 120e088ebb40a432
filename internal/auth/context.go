package auth

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"hirelens/internal/services"
)

// Context owns the bearer token for the running client.
type Context struct {
	store    TokenStore
	override string
	now      func() time.Time

	mu    sync.RWMutex
	token string
}

// NewContext loads the stored token. A non-empty override (HIRELENS_TOKEN)
// wins over the stored value and is never written back.
func NewContext(store TokenStore, override string) (*Context, error) {
	c := &Context{store: store, override: strings.TrimSpace(override), now: time.Now}
	if c.override != "" {
		c.token = c.override
		return c, nil
	}
	if store == nil {
		return c, nil
	}
	creds, err := store.Load()
	if err != nil {
		return nil, err
	}
	c.token = strings.TrimSpace(creds.Token)
	return c, nil
}

// Token returns the current token, if any.
func (c *Context) Token() (string, bool) {
	if c == nil {
		return "", false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.token != ""
}

// Authenticated reports whether a token is present and not known to be expired.
func (c *Context) Authenticated() bool {
	token, ok := c.Token()
	if !ok {
		return false
	}
	claims, err := ParseClaims(token)
	if err != nil {
		// Opaque tokens are left for the server to judge.
		return true
	}
	return !claims.Expired(c.now())
}

// Claims decodes the current token.
func (c *Context) Claims() (Claims, error) {
	token, ok := c.Token()
	if !ok {
		return Claims{}, services.ErrUnauthorized
	}
	return ParseClaims(token)
}

// Set stores a freshly issued token.
func (c *Context) Set(token, provider string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("empty token")
	}
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	return c.store.Save(Credentials{Token: token, Provider: provider, SavedAt: c.now().UTC()})
}

// Clear forgets the token in memory and on disk.
func (c *Context) Clear() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	return c.store.Clear()
}

// TokenSource exposes the current token to oauth2 transports.
func (c *Context) TokenSource() oauth2.TokenSource {
	return contextTokenSource{ctx: c}
}

type contextTokenSource struct {
	ctx *Context
}

func (s contextTokenSource) Token() (*oauth2.Token, error) {
	token, ok := s.ctx.Token()
	if !ok {
		return nil, services.Wrap(services.ErrUnauthorized, "auth", "token", "not signed in", nil)
	}
	tok := &oauth2.Token{AccessToken: token, TokenType: "Bearer"}
	if claims, err := ParseClaims(token); err == nil {
		if claims.Expired(s.ctx.now()) {
			return nil, services.Wrap(services.ErrUnauthorized, "auth", "token", fmt.Sprintf("token expired at %s", claims.ExpiresAt.Format(time.RFC3339)), nil)
		}
		tok.Expiry = claims.ExpiresAt
	}
	return tok, nil
}
