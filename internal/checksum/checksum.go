// Package checksum fingerprints note content. The same digest is stored in
// the index, reported to clients as an ETag and compared on If-Match.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sum returns the hex-encoded SHA-256 digest of data.
func Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// String is Sum over the UTF-8 bytes of s.
func String(s string) string {
	return Sum([]byte(s))
}

// ETag formats sum as a strong entity tag.
func ETag(sum string) string {
	return `"` + sum + `"`
}

// FromETag strips the quotes and weak prefix from an If-Match value.
// Bare checksums are accepted unchanged.
func FromETag(tag string) string {
	tag = strings.TrimSpace(tag)
	tag = strings.TrimPrefix(tag, "W/")
	return strings.Trim(tag, `"`)
}
