// Package config loads, normalizes, and validates jellydiscord configuration
// data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// TMDB_API_KEY. The Config type centralizes every knob the daemon and CLI
// need: upstream credentials, per-kind webhook targets, the change-watch
// policy, and the dispatcher/sync tuning knobs.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
