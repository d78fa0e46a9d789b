// Package logging wraps log/slog with the attribute helpers, standardized
// field names, and handler construction used across claimscan. Components
// receive child loggers tagged with a component attribute so daemon output
// and attempt history can be correlated.
package logging
