// Package token encodes tiered-expiry session payloads into compact signed
// strings and verifies them back, using asymmetric signing so verification
// never requires the private key.
package token
