package catalog

// searchResponse is the catalog search endpoint payload.
type searchResponse struct {
	Tracks struct {
		Items []trackItem `json:"items"`
	} `json:"tracks"`
}

type trackItem struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Artists []artistItem `json:"artists"`
}

type artistItem struct {
	Name string `json:"name"`
}

// AudioFeatures is the catalog audio-features payload for one track.
// Fields are pointers so the fetcher can distinguish absent values from
// genuine zeroes.
type AudioFeatures struct {
	ID         string   `json:"id"`
	Tempo      *float64 `json:"tempo"`
	Loudness   *float64 `json:"loudness"`
	DurationMs *float64 `json:"duration_ms"`
}

// apiError is the error object the catalog embeds in non-success bodies.
type apiError struct {
	Error struct {
		Status  int    `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}
