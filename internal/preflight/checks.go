package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"hirelens/internal/auth"
	"hirelens/internal/config"
	"hirelens/internal/deps"
	"hirelens/internal/services"
)

const pingTimeout = 5 * time.Second

// CheckScoringService verifies the scoring backend answers its health probe.
// It uses a single short timeout; retries are left to the session itself.
func CheckScoringService(ctx context.Context, pinger Pinger) Result {
	const name = "Scoring service"

	checkCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := pinger.Ping(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizePingError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}

// CheckToken reports whether a usable session token is stored.
func CheckToken(authCtx *auth.Context, now time.Time) Result {
	const name = "Session token"

	if _, ok := authCtx.Token(); !ok {
		return Result{Name: name, Detail: "not logged in (run `hirelens login`)"}
	}
	claims, err := authCtx.Claims()
	if err != nil {
		return Result{Name: name, Passed: true, Detail: "present (opaque token)"}
	}
	if claims.Expired(now) {
		return Result{Name: name, Detail: fmt.Sprintf("expired at %s (run `hirelens login`)", claims.ExpiresAt.Local().Format(time.DateTime))}
	}
	if claims.ExpiresAt.IsZero() {
		return Result{Name: name, Passed: true, Detail: "signed in as " + claims.DisplayName()}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("signed in as %s until %s", claims.DisplayName(), claims.ExpiresAt.Local().Format(time.DateTime))}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the tools the configured capture backend needs.
func CheckSystemDeps(ctx context.Context, cfg *config.Config) []deps.Status {
	return deps.Check(ctx, deps.CaptureRequirements(cfg))
}

// summarizePingError produces a human-readable summary for probe failures.
func summarizePingError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (scoring service unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (scoring service unreachable)"
	}
	if errors.Is(err, services.ErrUnauthorized) {
		return "session rejected (run `hirelens login`)"
	}
	return err.Error()
}
