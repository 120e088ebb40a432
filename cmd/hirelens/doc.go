// Package main hosts the HireLens CLI entrypoint and command graph.
//
// The Cobra-based command tree signs the user in against the scoring
// service, runs interactive practice sessions through the interview
// orchestrator, and reports remote and locally archived results. It
// centralizes configuration resolution, logger setup and client wiring so
// subcommands can focus on user experience.
//
// Keep this package lean: add new functionality to the internal packages
// first, then surface it through dedicated commands or flags here.
package main
