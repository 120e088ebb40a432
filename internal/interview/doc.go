// Package interview drives a practice interview from device acquisition to
// the final aggregated result.
//
// The Orchestrator is a state machine:
//
//	initializing -> ready -> recording -> attempt_completed -> processing -> done
//
// Each recording start allocates a fresh session id that doubles as the
// activation token for every asynchronous callback of that attempt: frame
// deliveries, countdown ticks and the countdown expiry all carry it, and
// anything carrying a stale token is discarded. Transitions are serialized
// behind one mutex, so a second Stop never produces a second attempt.
//
// Nothing inside a session is fatal. Missing devices degrade capture,
// scoring failures become neutral fallback attempts, and observers are told
// about each degradation through warning events.
package interview
