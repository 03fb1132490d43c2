// Package enrich implements the resolution-and-feature-enrichment engine:
// mapping (name, artist) pairs to catalog identifiers, fetching audio
// features per identifier, caching both durably, and pacing outbound
// calls in bounded concurrent groups.
package enrich

import (
	"context"
	"sync/atomic"
	"time"

	"track-enricher/internal/catalog"
	"track-enricher/internal/match"
)

// Cache TTL policy. Audio features are immutable for a published
// identifier, so they keep the longest TTL. A failed resolution expires
// well before a successful one, so a transient miss is never permanently
// blacklisted.
const (
	positiveResolutionTTL = 7 * 24 * time.Hour
	negativeResolutionTTL = 24 * time.Hour
	featureTTL            = 30 * 24 * time.Hour
)

// searchResultLimit bounds how many results one catalog search returns.
const searchResultLimit = 3

// TrackRef is a caller-supplied track identity.
type TrackRef struct {
	Name   string `json:"name"`
	Artist string `json:"artist"`
	ID     string `json:"id,omitempty"`
}

// Request is one enrichment request: a seed track plus an ordered list
// of candidates. Candidates is a pointer so a missing field can be told
// apart from an empty list during validation.
type Request struct {
	Seed       *TrackRef   `json:"seed" validate:"required"`
	Candidates *[]TrackRef `json:"candidates" validate:"required"`
}

// FeatureRecord carries the audio features for one resolved track.
// LoudnessGain stays null when the catalog omits it; missing tempo and
// duration normalize to zero.
type FeatureRecord struct {
	Tempo           float64  `json:"tempo"`
	LoudnessGain    *float64 `json:"loudnessGain"`
	DurationSeconds float64  `json:"durationSeconds"`
}

// Resolution is the tagged outcome of mapping (name, artist) to a
// catalog identifier. A stored Resolution with Found == false is a
// negative cache entry: looked up, not found — distinct from "not yet
// looked up".
type Resolution struct {
	Found bool   `json:"found"`
	ID    string `json:"id,omitempty"`
}

// Stats are the usage statistics accumulated across one request.
type Stats struct {
	CacheHits   int  `json:"cacheHits"`
	APICalls    int  `json:"apiCalls"`
	RateLimited bool `json:"rateLimited"`
}

// Response is the enrichment result. Candidates is keyed by the
// normalized "artist|||name" identity; unresolved or failed candidates
// map to null, never omitted.
type Response struct {
	Seed       *FeatureRecord            `json:"seed"`
	Candidates map[string]*FeatureRecord `json:"candidates"`
	Stats      Stats                     `json:"stats"`
}

// CatalogAPI is the outbound surface the engine consumes; implemented
// by catalog.Client.
type CatalogAPI interface {
	Search(ctx context.Context, name, artist string, limit int) ([]match.Candidate, error)
	GetAudioFeatures(ctx context.Context, id string) (*catalog.AudioFeatures, error)
}

// Gate exposes the cooldown check; implemented by ratelimit.Coordinator.
type Gate interface {
	InCooldown(ctx context.Context) bool
}

// counters aggregates usage statistics across the concurrent groups of
// one request.
type counters struct {
	cacheHits   atomic.Int64
	apiCalls    atomic.Int64
	rateLimited atomic.Bool
}

func (c *counters) snapshot() Stats {
	return Stats{
		CacheHits:   int(c.cacheHits.Load()),
		APICalls:    int(c.apiCalls.Load()),
		RateLimited: c.rateLimited.Load(),
	}
}

func resolutionKey(name, artist string) string {
	return "resolve:" + match.Key(name, artist)
}

func featureKey(id string) string {
	return "features:" + id
}
