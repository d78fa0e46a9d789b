// Package daemon runs the long-lived claimscan process: it enforces
// single-instance execution with a lock file, serves the HTTP API the CLI
// talks to, and watches udev netlink events so camera hotplug is visible
// without polling.
package daemon
