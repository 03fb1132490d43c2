// Package match holds the pure track-matching heuristic and the cache-key
// normalization shared by the resolver and the response assembly.
package match

import (
	"strings"
	"unicode"
)

// KeySeparator joins artist and name in resolution cache keys and in the
// response candidate map.
const KeySeparator = "|||"

// Key returns the normalized "artist|||name" identity for a track
// reference. Keys are case-insensitive and whitespace-collapsed.
func Key(name, artist string) string {
	return Normalize(artist) + KeySeparator + Normalize(name)
}

// Normalize lowercases the input and collapses every run of
// non-alphanumeric characters into a single space.
func Normalize(input string) string {
	if strings.TrimSpace(input) == "" {
		return ""
	}
	lowered := strings.ToLower(input)
	return strings.Join(strings.Fields(cleanSeparators(lowered)), " ")
}

func cleanSeparators(input string) string {
	var out strings.Builder
	lastSpace := false
	for _, r := range input {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			out.WriteRune(r)
			lastSpace = false
			continue
		}
		if !lastSpace {
			out.WriteRune(' ')
			lastSpace = true
		}
	}
	return out.String()
}
