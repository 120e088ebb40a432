// Package config loads, normalizes, and validates HireLens configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, loads an optional .env file and honours
// environment fallbacks such as HIRELENS_BASE_URL. The Config type centralizes
// every knob the CLI and the practice session need, so capture devices, the
// scoring service endpoint and session timing are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
