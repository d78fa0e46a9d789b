// Package scanner drives the scan-to-claim loop. A coordinator owns the
// camera session, polls frames on a fixed cadence, decodes them, extracts
// item identifiers, and hands them to the dispatcher under a single-flight
// guard shared with the manual entry path. Identical payloads are suppressed
// until the payload changes or the prior attempt has resolved and a short
// cooldown has passed.
package scanner
