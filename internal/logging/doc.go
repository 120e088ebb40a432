// Package logging assembles structured slog loggers and formatting helpers used
// across the HireLens client.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so session code can tag log lines
// with the practice session, question index and attempt number. Each practice
// session can also tee its records into a dedicated JSON file under the log
// directory; CleanupOldLogs prunes those files once they age out.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape as the rest of the client.
package logging
