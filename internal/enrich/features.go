package enrich

import (
	"context"
	"errors"

	"track-enricher/internal/cache"
	"track-enricher/internal/catalog"
	"track-enricher/internal/common/logging"
)

// features maps a catalog identifier to its FeatureRecord, cache-first.
// On a miss the catalog detail endpoint is consulted; a successful fetch
// is cached with the long TTL, a failed or throttled one returns nil and
// is never cached.
func (b *batch) features(ctx context.Context, id string) *FeatureRecord {
	var record FeatureRecord
	found, err := cache.GetJSON(ctx, b.store, featureKey(id), &record)
	if err != nil {
		logging.Debug("feature cache read failed, treating as miss", logging.Err(err))
	} else if found {
		b.stats.cacheHits.Add(1)
		return &record
	}

	if b.tripped.Load() {
		return nil
	}

	b.stats.apiCalls.Add(1)
	raw, err := b.api.GetAudioFeatures(ctx, id)
	if err != nil {
		if errors.Is(err, catalog.ErrThrottled) {
			b.trip()
		} else {
			logging.Debug("feature fetch failed",
				logging.Field{Key: "id", Value: id}, logging.Err(err))
		}
		return nil
	}

	record = normalizeFeatures(raw)
	if err := cache.SetJSON(ctx, b.store, featureKey(id), record, featureTTL); err != nil {
		logging.Debug("feature cache write failed", logging.Err(err))
	}
	return &record
}

// normalizeFeatures fills absent numeric fields: tempo and duration
// become zero, loudness gain stays null.
func normalizeFeatures(raw *catalog.AudioFeatures) FeatureRecord {
	record := FeatureRecord{LoudnessGain: raw.Loudness}
	if raw.Tempo != nil {
		record.Tempo = *raw.Tempo
	}
	if raw.DurationMs != nil {
		record.DurationSeconds = *raw.DurationMs / 1000
	}
	return record
}
