// Package config loads, normalizes, and validates prodtrack configuration.
//
// Configuration lives in a TOML file (default ~/.config/prodtrack/config.toml).
// Missing files are not an error: Load falls back to Default and applies the
// PRODTRACK_* environment overrides on top.
package config
