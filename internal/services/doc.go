// Package services defines shared utilities consumed by the practice session
// components and the scoring integration.
//
// Key responsibilities:
//   - Context helpers that stamp session IDs, question indexes, attempt numbers
//     and correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper that classify failures
//     into the client's error taxonomy (device, network, response, recording).
//   - Banner, which turns a classified error into the short message shown to
//     the user without halting the session.
//
// Use these helpers when wiring new session logic so operational behaviour
// (error handling, observability) stays uniform across the client.
package services
