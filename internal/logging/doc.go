// Package logging configures the bridge's structured logger.
//
// Every component logs through log/slog using a small set of standardized
// field names (see fields.go) so that console and JSON output stay
// consistent across the webhook ingress, sync engine, and dispatcher. Two
// handlers are supported: a pretty console handler for interactive use and
// a JSON handler for production log aggregation.
package logging
