package facematch

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxUsernameLength is the longest accepted username, in runes.
const MaxUsernameLength = 64

// NormalizeUsername trims surrounding whitespace, drops control characters and
// composes the result to NFC so visually identical names compare equal.
// Case is preserved: "Alice" and "alice" are distinct identities.
func NormalizeUsername(name string) string {
	t := transform.Chain(runes.Remove(runes.In(unicode.Cc)), norm.NFC)
	result, _, err := transform.String(t, name)
	if err != nil {
		result = name
	}
	return strings.TrimSpace(result)
}

// ValidUsername reports whether an already normalised username is acceptable.
func ValidUsername(name string) bool {
	n := len([]rune(name))
	return n > 0 && n <= MaxUsernameLength
}
