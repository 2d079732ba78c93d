// Package slug derives URL-safe identifiers for notes nearing publication.
package slug

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

const (
	maxLen   = 60
	fallback = "untitled"
)

var validRe = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

// Generate converts text into a lowercase, hyphen-separated slug.
func Generate(text string) string {
	var b strings.Builder
	lastHyphen := true
	for _, r := range norm.NFKD.String(text) {
		switch {
		case unicode.Is(unicode.Mn, r):
			// Drop combining marks left behind by decomposition.
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
			lastHyphen = false
		case !lastHyphen:
			b.WriteByte('-')
			lastHyphen = true
		}
	}
	s := strings.Trim(b.String(), "-")
	if len(s) > maxLen {
		s = strings.TrimRight(s[:maxLen], "-")
	}
	if s == "" {
		return fallback
	}
	return s
}

// Unique generates a slug for text that does not collide with taken.
// Collisions are resolved by appending -2, -3, and so on.
func Unique(text string, taken map[string]struct{}) string {
	base := Generate(text)
	if _, ok := taken[base]; !ok {
		return base
	}
	for i := 2; ; i++ {
		candidate := base + "-" + strconv.Itoa(i)
		if _, ok := taken[candidate]; !ok {
			return candidate
		}
	}
}

// Valid reports whether s is a well-formed slug.
func Valid(s string) bool {
	return len(s) <= maxLen+8 && validRe.MatchString(s)
}
