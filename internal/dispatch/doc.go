// Package dispatch issues claim and collect operations against the item
// service, exactly once per invocation, and records each attempt's outcome.
// Callers that hold no session token are refused before any network call.
package dispatch
