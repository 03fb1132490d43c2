package enrich

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"track-enricher/internal/cache"
	"track-enricher/internal/catalog"
	apperrors "track-enricher/internal/common/errors"
	"track-enricher/internal/match"
)

// fakeCatalog is an in-memory CatalogAPI for orchestration tests.
type fakeCatalog struct {
	mu          sync.Mutex
	searches    int
	details     int
	inFlight    int
	maxInFlight int
	searchFn    func(name, artist string) ([]match.Candidate, error)
	featureFn   func(id string) (*catalog.AudioFeatures, error)
}

func (f *fakeCatalog) enter() {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
}

func (f *fakeCatalog) exit() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeCatalog) Search(ctx context.Context, name, artist string, limit int) ([]match.Candidate, error) {
	f.enter()
	defer f.exit()
	f.mu.Lock()
	f.searches++
	f.mu.Unlock()
	if f.searchFn != nil {
		return f.searchFn(name, artist)
	}
	return nil, nil
}

func (f *fakeCatalog) GetAudioFeatures(ctx context.Context, id string) (*catalog.AudioFeatures, error) {
	f.enter()
	defer f.exit()
	f.mu.Lock()
	f.details++
	f.mu.Unlock()
	if f.featureFn != nil {
		return f.featureFn(id)
	}
	return &catalog.AudioFeatures{ID: id}, nil
}

func (f *fakeCatalog) counts() (searches, details int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.searches, f.details
}

// stubGate is a fixed cooldown answer.
type stubGate bool

func (s stubGate) InCooldown(ctx context.Context) bool { return bool(s) }

func testStore(t *testing.T) cache.Store {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	store, err := cache.NewRedisStore(&cache.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func fastOptions() Options {
	opts := DefaultOptions()
	opts.PaceDelay = 0
	return opts
}

// matchingCatalog resolves every query to a single matching result and
// serves complete feature records.
func matchingCatalog() *fakeCatalog {
	return &fakeCatalog{
		searchFn: func(name, artist string) ([]match.Candidate, error) {
			return []match.Candidate{
				{ID: "id-" + match.Normalize(name), Name: name, Artist: artist},
			}, nil
		},
		featureFn: func(id string) (*catalog.AudioFeatures, error) {
			tempo, loudness, duration := 110.0, -5.5, 200000.0
			return &catalog.AudioFeatures{ID: id, Tempo: &tempo, Loudness: &loudness, DurationMs: &duration}, nil
		},
	}
}

func seedAndOneCandidate() *Request {
	candidates := []TrackRef{{Name: "Butter", Artist: "BTS"}}
	return &Request{
		Seed:       &TrackRef{Name: "Dynamite", Artist: "BTS"},
		Candidates: &candidates,
	}
}

func TestEnrich_ColdCache(t *testing.T) {
	store := testStore(t)
	api := matchingCatalog()
	enricher := New(store, api, stubGate(false), fastOptions())

	resp := enricher.Enrich(context.Background(), seedAndOneCandidate())

	require.NotNil(t, resp.Seed)
	require.Equal(t, 110.0, resp.Seed.Tempo)
	require.Equal(t, 200.0, resp.Seed.DurationSeconds)

	require.Len(t, resp.Candidates, 1)
	butter := resp.Candidates[match.Key("Butter", "BTS")]
	require.NotNil(t, butter)
	require.NotNil(t, butter.LoudnessGain)
	require.Equal(t, -5.5, *butter.LoudnessGain)

	// two searches plus two feature fetches
	require.Equal(t, 4, resp.Stats.APICalls)
	require.Equal(t, 0, resp.Stats.CacheHits)
	require.False(t, resp.Stats.RateLimited)
}

func TestEnrich_WarmCache(t *testing.T) {
	store := testStore(t)
	api := matchingCatalog()
	enricher := New(store, api, stubGate(false), fastOptions())

	_ = enricher.Enrich(context.Background(), seedAndOneCandidate())
	resp := enricher.Enrich(context.Background(), seedAndOneCandidate())

	require.NotNil(t, resp.Seed)
	require.Equal(t, 4, resp.Stats.CacheHits)
	require.Equal(t, 0, resp.Stats.APICalls)

	searches, details := api.counts()
	require.Equal(t, 2, searches)
	require.Equal(t, 2, details)
}

func TestEnrich_SeedWithKnownID(t *testing.T) {
	store := testStore(t)
	api := matchingCatalog()
	enricher := New(store, api, stubGate(false), fastOptions())

	candidates := []TrackRef{}
	req := &Request{
		Seed:       &TrackRef{Name: "Dynamite", Artist: "BTS", ID: "known-id"},
		Candidates: &candidates,
	}

	resp := enricher.Enrich(context.Background(), req)

	require.NotNil(t, resp.Seed)
	searches, details := api.counts()
	require.Equal(t, 0, searches, "known id skips resolution")
	require.Equal(t, 1, details)
	require.Equal(t, 1, resp.Stats.APICalls)
}

func TestEnrich_CooldownGateSkipsAllCalls(t *testing.T) {
	store := testStore(t)
	api := matchingCatalog()
	enricher := New(store, api, stubGate(true), fastOptions())

	resp := enricher.Enrich(context.Background(), seedAndOneCandidate())

	require.Nil(t, resp.Seed)
	require.Len(t, resp.Candidates, 1)
	require.Nil(t, resp.Candidates[match.Key("Butter", "BTS")])
	require.True(t, resp.Stats.RateLimited)
	require.Equal(t, 0, resp.Stats.APICalls)

	searches, details := api.counts()
	require.Zero(t, searches)
	require.Zero(t, details)
}

func TestEnrich_ThrottleOnFirstCall(t *testing.T) {
	store := testStore(t)
	api := matchingCatalog()
	api.searchFn = func(name, artist string) ([]match.Candidate, error) {
		return nil, catalog.ErrThrottled
	}
	enricher := New(store, api, stubGate(false), fastOptions())

	resp := enricher.Enrich(context.Background(), seedAndOneCandidate())

	require.Nil(t, resp.Seed)
	require.Len(t, resp.Candidates, 1)
	require.Nil(t, resp.Candidates[match.Key("Butter", "BTS")])
	require.True(t, resp.Stats.RateLimited)
	require.Equal(t, 1, resp.Stats.APICalls, "no further calls after the throttle signal")
}

func TestEnrich_ThrottleMidBatchStopsNewWaves(t *testing.T) {
	store := testStore(t)
	api := matchingCatalog()
	api.searchFn = func(name, artist string) ([]match.Candidate, error) {
		return nil, catalog.ErrThrottled
	}

	candidates := make([]TrackRef, 12)
	for i := range candidates {
		candidates[i] = TrackRef{Name: fmt.Sprintf("Track %d", i), Artist: "BTS"}
	}
	req := &Request{Seed: &TrackRef{Name: "Seed", Artist: "BTS", ID: "seed-id"}, Candidates: &candidates}

	opts := fastOptions()
	opts.GroupSize = 5
	enricher := New(store, api, stubGate(false), opts)

	resp := enricher.Enrich(context.Background(), req)

	require.True(t, resp.Stats.RateLimited)
	searches, _ := api.counts()
	require.LessOrEqual(t, searches, 5, "only the in-flight wave completes after throttling")
	for _, record := range resp.Candidates {
		require.Nil(t, record)
	}
}

func TestEnrich_CandidateCap(t *testing.T) {
	store := testStore(t)
	api := matchingCatalog()
	enricher := New(store, api, stubGate(false), fastOptions())

	candidates := make([]TrackRef, 40)
	for i := range candidates {
		candidates[i] = TrackRef{Name: fmt.Sprintf("Track %d", i), Artist: "BTS"}
	}
	req := &Request{Seed: &TrackRef{Name: "Seed", Artist: "BTS", ID: "seed-id"}, Candidates: &candidates}

	resp := enricher.Enrich(context.Background(), req)

	require.Len(t, resp.Candidates, 30, "at most 30 candidates processed")
}

func TestEnrich_SearchCap(t *testing.T) {
	store := testStore(t)
	api := matchingCatalog()
	enricher := New(store, api, stubGate(false), fastOptions())

	candidates := make([]TrackRef, 25)
	for i := range candidates {
		candidates[i] = TrackRef{Name: fmt.Sprintf("Track %d", i), Artist: "BTS"}
	}
	req := &Request{Seed: &TrackRef{Name: "Seed", Artist: "BTS", ID: "seed-id"}, Candidates: &candidates}

	resp := enricher.Enrich(context.Background(), req)

	searches, _ := api.counts()
	require.Equal(t, 20, searches, "cache-miss candidates beyond the search cap skip the network")

	require.Len(t, resp.Candidates, 25)
	nulls := 0
	for _, record := range resp.Candidates {
		if record == nil {
			nulls++
		}
	}
	require.Equal(t, 5, nulls, "excess candidates resolve to null without a network attempt")
}

func TestEnrich_DuplicateCandidatesCollapse(t *testing.T) {
	store := testStore(t)
	api := matchingCatalog()
	enricher := New(store, api, stubGate(false), fastOptions())

	candidates := []TrackRef{
		{Name: "Butter", Artist: "BTS"},
		{Name: "BUTTER", Artist: "bts"},
	}
	req := &Request{Seed: &TrackRef{Name: "Seed", Artist: "BTS", ID: "seed-id"}, Candidates: &candidates}

	resp := enricher.Enrich(context.Background(), req)

	require.Len(t, resp.Candidates, 1)
	searches, _ := api.counts()
	require.Equal(t, 1, searches)
}

func TestEnrich_PerItemFailureDoesNotAbortBatch(t *testing.T) {
	store := testStore(t)
	api := matchingCatalog()
	api.featureFn = func(id string) (*catalog.AudioFeatures, error) {
		if id == "id-"+match.Normalize("Broken") {
			return nil, apperrors.UpstreamError("catalog: status 500", nil)
		}
		tempo := 110.0
		return &catalog.AudioFeatures{ID: id, Tempo: &tempo}, nil
	}
	enricher := New(store, api, stubGate(false), fastOptions())

	candidates := []TrackRef{
		{Name: "Broken", Artist: "BTS"},
		{Name: "Fine", Artist: "BTS"},
	}
	req := &Request{Seed: &TrackRef{Name: "Seed", Artist: "BTS", ID: "seed-id"}, Candidates: &candidates}

	resp := enricher.Enrich(context.Background(), req)

	require.Nil(t, resp.Candidates[match.Key("Broken", "BTS")])
	require.NotNil(t, resp.Candidates[match.Key("Fine", "BTS")])
	require.False(t, resp.Stats.RateLimited)
}

func TestEnrich_GroupSizeBoundsConcurrency(t *testing.T) {
	store := testStore(t)
	api := matchingCatalog()

	candidates := make([]TrackRef, 10)
	for i := range candidates {
		candidates[i] = TrackRef{Name: fmt.Sprintf("Track %d", i), Artist: "BTS"}
	}
	req := &Request{Seed: &TrackRef{Name: "Seed", Artist: "BTS", ID: "seed-id"}, Candidates: &candidates}

	opts := fastOptions()
	opts.GroupSize = 3
	enricher := New(store, api, stubGate(false), opts)

	_ = enricher.Enrich(context.Background(), req)

	api.mu.Lock()
	maxInFlight := api.maxInFlight
	api.mu.Unlock()
	require.LessOrEqual(t, maxInFlight, 3)
}

func TestEnrich_NoCacheDegradation(t *testing.T) {
	api := matchingCatalog()
	enricher := New(cache.NewNoopStore(), api, stubGate(false), fastOptions())

	resp := enricher.Enrich(context.Background(), seedAndOneCandidate())

	require.NotNil(t, resp.Seed)
	require.NotNil(t, resp.Candidates[match.Key("Butter", "BTS")])
	require.Equal(t, 0, resp.Stats.CacheHits)
	require.Equal(t, 4, resp.Stats.APICalls)
}
