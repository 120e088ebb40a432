package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	"hirelens/internal/config"
	"hirelens/internal/scoring"
)

func retryPolicy(cfg *config.Config) scoring.RetryPolicy {
	return scoring.RetryPolicy{
		MaxAttempts: cfg.Retry.MaxAttempts,
		BaseDelay:   time.Duration(cfg.Retry.BaseDelayMS) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.Retry.MaxDelayMS) * time.Millisecond,
	}
}

// formatScore renders a 0-100 score rounded to a whole number.
func formatScore(v float64) string {
	return fmt.Sprintf("%d", int(math.Round(v)))
}

func formatTimestamp(ts time.Time) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

func truncate(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if limit <= 0 || len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
