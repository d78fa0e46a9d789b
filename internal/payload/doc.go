// Package payload extracts canonical item identifiers from decoded QR
// payloads and manual input. Payloads arrive in several encodings: a JSON
// object carrying the id under a known key, free text containing a UUID, or
// a colon-delimited token whose final segment is the id.
package payload
