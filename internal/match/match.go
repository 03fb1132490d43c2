package match

import "strings"

// Candidate is one search result offered to the heuristic.
type Candidate struct {
	ID     string
	Name   string
	Artist string
}

// Pick selects the catalog identifier for a (name, artist) query from a
// ranked list of search results.
//
// The heuristic is deliberately permissive: a result matches when its
// normalized artist is a substring of the query artist or vice versa,
// and likewise for the title. Substring-in-either-direction tolerates
// featuring-artist suffixes ("BTS feat. X" vs "BTS") and alternate title
// punctuation. When no result satisfies both conditions the first result
// wins; with no results at all there is no match.
func Pick(name, artist string, results []Candidate) (string, bool) {
	if len(results) == 0 {
		return "", false
	}

	queryName := Normalize(name)
	queryArtist := Normalize(artist)

	for _, r := range results {
		if containsEither(Normalize(r.Artist), queryArtist) && containsEither(Normalize(r.Name), queryName) {
			return r.ID, true
		}
	}

	return results[0].ID, true
}

func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}
