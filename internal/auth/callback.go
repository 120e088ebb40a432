package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hirelens/internal/logging"
)

// CallbackPath is where the backend redirects once the provider login succeeds.
const CallbackPath = "/login/callback"

// ErrNoToken is returned when a callback URL carries no token parameter.
var ErrNoToken = errors.New("no token received")

// ParseCallback extracts the token from a pasted callback URL, a bare query
// string, or a bare token.
func ParseCallback(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrNoToken
	}
	query := raw
	if _, after, ok := strings.Cut(raw, "?"); ok {
		query = after
	} else if !strings.Contains(raw, "=") {
		return raw, nil
	}
	query, _, _ = strings.Cut(query, "#")
	values, err := url.ParseQuery(query)
	if err != nil {
		return "", fmt.Errorf("parse callback query: %w", err)
	}
	token := strings.TrimSpace(values.Get("token"))
	if token == "" {
		return "", ErrNoToken
	}
	return token, nil
}

// CallbackListener serves CallbackPath on a local address and hands the first
// token it receives to Wait.
type CallbackListener struct {
	logger   *slog.Logger
	listener net.Listener
	server   *http.Server
	tokens   chan string
}

// NewCallbackListener binds the listener immediately so the address can be
// shown to the user before the browser is opened.
func NewCallbackListener(bind string, logger *slog.Logger) (*CallbackListener, error) {
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, fmt.Errorf("callback listen: %w", err)
	}
	l := &CallbackListener{
		logger:   logging.NewComponentLogger(logger, "auth-callback"),
		listener: listener,
		tokens:   make(chan string, 1),
	}
	mux := http.NewServeMux()
	mux.HandleFunc(CallbackPath, l.handleCallback)
	l.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
	}
	go func() {
		if err := l.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.logger.Error("callback server error", logging.Error(err))
		}
	}()
	l.logger.Debug("callback listener ready", logging.String("address", listener.Addr().String()))
	return l, nil
}

// URL returns the callback address served by the listener.
func (l *CallbackListener) URL() string {
	return "http://" + l.listener.Addr().String() + CallbackPath
}

// Wait blocks until a token arrives or ctx is done.
func (l *CallbackListener) Wait(ctx context.Context) (string, error) {
	select {
	case token := <-l.tokens:
		return token, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Close shuts the server down.
func (l *CallbackListener) Close() error {
	if l == nil || l.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return l.server.Shutdown(ctx)
}

func (l *CallbackListener) handleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token, err := ParseCallback("?" + r.URL.RawQuery)
	if err != nil {
		logging.WarnWithContext(l.logger, "login callback without token", "login_callback_invalid",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "retry `hirelens login`"),
			logging.String(logging.FieldImpact, "login not completed"),
		)
		http.Error(w, "Authentication failed: no token received", http.StatusBadRequest)
		return
	}
	select {
	case l.tokens <- token:
	default:
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("HireLens login complete. You can close this window.\n"))
}
