// Package checksum computes note revision tokens and their HTTP entity-tag form.
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

// ETag quotes a revision for use as a strong entity tag.
func ETag(revision string) string {
	if revision == "" {
		return ""
	}
	return `"` + revision + `"`
}

// FromETag extracts the revision from an If-Match style header value.
// Weak tags are accepted, "*" and empty values yield "".
func FromETag(header string) string {
	tag := strings.TrimSpace(header)
	tag = strings.TrimPrefix(tag, "W/")
	tag = strings.Trim(tag, `"`)
	if tag == "*" {
		return ""
	}
	return tag
}
