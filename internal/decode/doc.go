// Package decode turns camera frames into QR payload strings. Two strategies
// exist: an external hardware-assisted detector (zbarimg), preferred for
// latency when the binary is installed, and an in-process software decoder
// (gozxing) that tolerates detector absence entirely and tries both
// light-on-dark and dark-on-light codes. The strategy set is chosen once at
// pipeline construction, not per frame.
package decode
