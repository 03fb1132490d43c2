package enrich

import (
	"context"
	"errors"

	"track-enricher/internal/cache"
	"track-enricher/internal/catalog"
	"track-enricher/internal/common/logging"
	"track-enricher/internal/match"
)

// resolve maps a (name, artist) pair to a tagged Resolution, cache-first.
// A cached negative entry counts as a hit and returns immediately. On a
// miss the catalog is searched and the outcome — found or not — is
// cached with the TTL policy. Failed or throttled searches are never
// cached, so the pair stays eligible for a later attempt.
func (b *batch) resolve(ctx context.Context, name, artist string) Resolution {
	if res, hit := b.cachedResolution(ctx, name, artist); hit {
		return res
	}

	if b.tripped.Load() {
		return Resolution{}
	}

	results, err := b.searchCatalog(ctx, name, artist)
	if err != nil {
		return Resolution{}
	}

	res := Resolution{}
	res.ID, res.Found = match.Pick(name, artist, results)

	ttl := positiveResolutionTTL
	if !res.Found {
		ttl = negativeResolutionTTL
	}
	if err := cache.SetJSON(ctx, b.store, resolutionKey(name, artist), res, ttl); err != nil {
		logging.Debug("resolution cache write failed", logging.Err(err))
	}

	return res
}

// cachedResolution is the cache-only lookup the orchestrator uses to
// classify candidates without network activity. A hit — positive or
// negative — increments the cache-hit counter.
func (b *batch) cachedResolution(ctx context.Context, name, artist string) (Resolution, bool) {
	var res Resolution
	found, err := cache.GetJSON(ctx, b.store, resolutionKey(name, artist), &res)
	if err != nil {
		logging.Debug("resolution cache read failed, treating as miss", logging.Err(err))
		return Resolution{}, false
	}
	if !found {
		return Resolution{}, false
	}
	b.stats.cacheHits.Add(1)
	return res, true
}

func (b *batch) searchCatalog(ctx context.Context, name, artist string) ([]match.Candidate, error) {
	b.stats.apiCalls.Add(1)
	results, err := b.api.Search(ctx, name, artist, searchResultLimit)
	if err != nil {
		if errors.Is(err, catalog.ErrThrottled) {
			b.trip()
		} else {
			logging.Debug("catalog search failed",
				logging.Field{Key: "artist", Value: artist},
				logging.Field{Key: "name", Value: name},
				logging.Err(err))
		}
		return nil, err
	}
	return results, nil
}
