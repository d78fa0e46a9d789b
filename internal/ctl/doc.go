// Package ctl is the HTTP client the CLI uses to control a running
// claimscan daemon through its API.
package ctl
