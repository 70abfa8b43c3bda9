// Package config loads, normalizes, and validates the TOML
// configuration shared by the daemon and CLI. Paths are expanded to
// absolute form and secrets may be supplied through the environment.
package config
