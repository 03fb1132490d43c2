// Package ratelimit coordinates the upstream cooldown shared by every
// instance of the service through the durable cache store.
package ratelimit

import (
	"context"
	"time"

	"track-enricher/internal/cache"
	"track-enricher/internal/common/logging"
)

const stateKey = "catalog:ratelimit"

// stateTTLSlack keeps the persisted flag alive somewhat longer than the
// cooldown window itself, so it self-clears even if never deleted.
const stateTTLSlack = 90 * time.Second

// State is the persisted cooldown flag.
type State struct {
	Limited bool  `json:"limited"`
	ResetAt int64 `json:"resetAt"` // unix milliseconds
}

// Coordinator gates outbound catalog calls on a shared cooldown flag.
// The flag is advisory: two concurrent requests may both observe "not
// limited" and each issue one more call before the write propagates.
// That bounded over-calling is acceptable.
type Coordinator struct {
	store  cache.Store
	window time.Duration
	now    func() time.Time
}

// NewCoordinator creates a coordinator with the given cooldown window.
func NewCoordinator(store cache.Store, window time.Duration) *Coordinator {
	return &Coordinator{
		store:  store,
		window: window,
		now:    time.Now,
	}
}

// InCooldown reports whether a throttling signal is still in effect.
// Store errors fail open: an unreachable cache never blocks requests.
func (c *Coordinator) InCooldown(ctx context.Context) bool {
	var state State
	found, err := cache.GetJSON(ctx, c.store, stateKey, &state)
	if err != nil {
		logging.Warn("rate limit state read failed, assuming not limited", logging.Err(err))
		return false
	}
	if !found {
		return false
	}
	return state.Limited && c.now().UnixMilli() < state.ResetAt
}

// RecordThrottled persists the cooldown flag after an upstream throttling
// signal. Repeated detections within one batch overwrite the state with
// an equivalent value.
func (c *Coordinator) RecordThrottled(ctx context.Context) {
	state := State{
		Limited: true,
		ResetAt: c.now().Add(c.window).UnixMilli(),
	}
	if err := cache.SetJSON(ctx, c.store, stateKey, state, c.window+stateTTLSlack); err != nil {
		logging.Warn("failed to persist rate limit state", logging.Err(err))
	}
	logging.Info("upstream throttling observed, cooldown started",
		logging.Field{Key: "window", Value: c.window.String()})
}

// Window returns the configured cooldown window.
func (c *Coordinator) Window() time.Duration {
	return c.window
}
