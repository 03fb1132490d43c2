package enrich

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"track-enricher/internal/cache"
	"track-enricher/internal/match"
)

// Options are the batch tuning knobs. Defaults bound worst-case latency
// and upstream cost per request.
type Options struct {
	// GroupSize is the number of concurrent operations per wave.
	GroupSize int
	// PaceDelay is the blocking delay between waves.
	PaceDelay time.Duration
	// CandidateCap is the hard cap on candidates processed per request.
	CandidateCap int
	// SearchCap is the hard cap on network searches per request; cache-miss
	// candidates beyond it resolve to null without a network attempt.
	SearchCap int
}

// DefaultOptions returns the standard tuning values.
func DefaultOptions() Options {
	return Options{
		GroupSize:    5,
		PaceDelay:    200 * time.Millisecond,
		CandidateCap: 30,
		SearchCap:    20,
	}
}

// Enricher drives the resolver and feature fetcher over a bounded
// candidate list. Safe for concurrent use; all mutable state lives in
// the per-request batch.
type Enricher struct {
	store cache.Store
	api   CatalogAPI
	gate  Gate
	opts  Options
}

// New creates an Enricher. Zero-valued options fall back to defaults.
func New(store cache.Store, api CatalogAPI, gate Gate, opts Options) *Enricher {
	defaults := DefaultOptions()
	if opts.GroupSize < 1 {
		opts.GroupSize = defaults.GroupSize
	}
	if opts.CandidateCap < 1 {
		opts.CandidateCap = defaults.CandidateCap
	}
	if opts.SearchCap < 1 {
		opts.SearchCap = defaults.SearchCap
	}
	return &Enricher{store: store, api: api, gate: gate, opts: opts}
}

// batch holds the state of one request: usage counters plus the trip
// flag that aborts remaining waves once throttling is observed. Nothing
// here outlives the request.
type batch struct {
	store   cache.Store
	api     CatalogAPI
	opts    Options
	stats   counters
	tripped atomic.Bool
}

func (b *batch) trip() {
	b.tripped.Store(true)
	b.stats.rateLimited.Store(true)
}

// candidateState tracks one deduplicated candidate through the steps.
type candidateState struct {
	ref      TrackRef
	key      string
	res      Resolution
	resolved bool // res is meaningful (cache hit or search performed)
	features *FeatureRecord
}

// Enrich runs the full batch: seed first, then candidate resolution in
// paced waves, then feature fetches for everything resolved. Every
// well-formed request yields a structurally complete response — one
// entry per deduplicated candidate, null for anything unresolved.
func (e *Enricher) Enrich(ctx context.Context, req *Request) *Response {
	b := &batch{store: e.store, api: e.api, opts: e.opts}
	resp := &Response{Candidates: make(map[string]*FeatureRecord)}

	states := e.prepareCandidates(req)

	// shared cooldown gate: skip all outbound work, keep the shape
	if e.gate != nil && e.gate.InCooldown(ctx) {
		b.stats.rateLimited.Store(true)
		for _, st := range states {
			resp.Candidates[st.key] = nil
		}
		resp.Stats = b.stats.snapshot()
		return resp
	}

	resp.Seed = b.enrichSeed(ctx, req.Seed)

	// classify candidates cache-only, then cap the searchable subset
	var needsSearch []*candidateState
	for _, st := range states {
		if res, hit := b.cachedResolution(ctx, st.ref.Name, st.ref.Artist); hit {
			st.res = res
			st.resolved = true
		} else if len(needsSearch) < b.opts.SearchCap {
			needsSearch = append(needsSearch, st)
		}
	}

	b.runGroups(ctx, len(needsSearch), func(i int) {
		st := needsSearch[i]
		st.res = b.resolve(ctx, st.ref.Name, st.ref.Artist)
		st.resolved = true
	})

	var fetchable []*candidateState
	for _, st := range states {
		if st.resolved && st.res.Found {
			fetchable = append(fetchable, st)
		}
	}
	b.runGroups(ctx, len(fetchable), func(i int) {
		fetchable[i].features = b.features(ctx, fetchable[i].res.ID)
	})

	for _, st := range states {
		resp.Candidates[st.key] = st.features
	}
	resp.Stats = b.stats.snapshot()
	return resp
}

// prepareCandidates truncates the input to the hard cap and deduplicates
// by normalized key, preserving caller order (first occurrence wins).
func (e *Enricher) prepareCandidates(req *Request) []*candidateState {
	candidates := *req.Candidates
	if len(candidates) > e.opts.CandidateCap {
		candidates = candidates[:e.opts.CandidateCap]
	}

	states := make([]*candidateState, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, ref := range candidates {
		key := candidateKey(ref)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		states = append(states, &candidateState{ref: ref, key: key})
	}
	return states
}

// enrichSeed resolves and fetches the seed track. A seed that already
// carries a catalog identifier skips resolution entirely.
func (b *batch) enrichSeed(ctx context.Context, seed *TrackRef) *FeatureRecord {
	id := seed.ID
	if id == "" {
		res := b.resolve(ctx, seed.Name, seed.Artist)
		if !res.Found {
			return nil
		}
		id = res.ID
	}
	return b.features(ctx, id)
}

// runGroups executes fn over [0, n) in fixed-size concurrent waves with
// a pacing delay between waves. Once the batch trips, no new wave
// starts; operations already in flight are awaited but not retried.
func (b *batch) runGroups(ctx context.Context, n int, fn func(i int)) {
	for start := 0; start < n; start += b.opts.GroupSize {
		if b.tripped.Load() || ctx.Err() != nil {
			return
		}
		if start > 0 && b.opts.PaceDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(b.opts.PaceDelay):
			}
		}

		end := start + b.opts.GroupSize
		if end > n {
			end = n
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				fn(i)
			}(i)
		}
		wg.Wait()
	}
}

func candidateKey(ref TrackRef) string {
	return match.Key(ref.Name, ref.Artist)
}
