// Package textutil provides text helpers shared by the session and capture
// packages: canonical question keys, transcript fingerprints for comparing
// attempts, and filesystem-safe tokens for lock file names.
//
// Question keys are NFC-normalized and whitespace-collapsed so prompts that
// render identically always map to the same record. Fingerprints are
// term-frequency vectors over lowercase letter/digit runs of three or more
// characters.
package textutil
