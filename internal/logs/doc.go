// Package logs reads the per-session JSON logs written during practice.
//
// It locates session logs by modification time, tails them with bounded
// memory, follows them while a session is still writing, and renders each
// JSON record as a single readable line for `hirelens logs`.
package logs
