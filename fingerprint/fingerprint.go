// Package fingerprint derives stable, one-way client fingerprints from
// request origin data. Hashes are hex-encoded sha256 digests; the functions
// are pure and safe for concurrent use.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hash returns the hex sha256 digest of value. Used independently on the
// client address and on the user agent to build token payload bindings.
func Hash(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// Visitor returns the anonymous visitor hash for a client: the digest of the
// raw address concatenated with the raw user agent. Records created for the
// same client at different times share the same visitor hash, which is what
// makes anonymous activity correlatable.
func Visitor(address, userAgent string) string {
	return Hash(address + userAgent)
}
