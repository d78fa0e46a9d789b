// Package api defines wire-format types and converters for the daemon HTTP
// API. It translates internal attempt and scanner models into transport
// DTOs so CLI and other consumers never couple to internal types.
//
// DTOs use camelCase JSON tags. Internal enums (attempts.Status,
// dispatch.Mode) are exposed as lowercase strings. Timestamps use RFC3339
// with milliseconds.
package api
