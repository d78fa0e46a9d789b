// Package preflight runs startup checks so misconfiguration is reported
// before the daemon begins scanning: external binaries, camera device
// access, and item service reachability.
package preflight
