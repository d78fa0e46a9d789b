// Package attempts persists the claim attempt history in SQLite. Every
// dispatch, camera-driven or manual, is recorded when it starts and resolved
// with its outcome, so operators can audit what was scanned and when.
package attempts
