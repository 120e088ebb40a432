package preflight

import (
	"context"
	"time"

	"hirelens/internal/auth"
	"hirelens/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Pinger is satisfied by the scoring client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RunAll executes the checks relevant to a practice session. pinger and
// authCtx may be nil, in which case their checks are skipped.
func RunAll(ctx context.Context, cfg *config.Config, pinger Pinger, authCtx *auth.Context) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Data directory", cfg.Paths.DataDir))
	if cfg.Paths.LockDir != "" {
		results = append(results, CheckDirectoryAccess("Lock directory", cfg.Paths.LockDir))
	}

	if authCtx != nil {
		results = append(results, CheckToken(authCtx, time.Now()))
	}
	if pinger != nil {
		results = append(results, CheckScoringService(ctx, pinger))
	}

	results = append(results, CheckCaptureFromConfig(cfg)...)
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
