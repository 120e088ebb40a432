// Package preflight provides readiness checks for the scoring service, the
// stored session token, capture devices and local directories.
//
// These checks run in two contexts:
//   - "hirelens practice" calls RunAll before acquiring devices and prints
//     failed checks as warnings; a session still starts without them.
//   - "hirelens doctor" prints every result, including dependency status.
//
// Checks never block on user input and each network probe has its own
// timeout.
package preflight
