// Package dedup keeps signals from being processed twice. Three tiers are
// consulted in order: a per-cycle set, a short-lived warm tier shared by
// nearby invocations, and the durable seen ring in the chain's index record.
package dedup

import (
	"context"

	"github.com/rs/zerolog"
)

// Tier names reported by CheckAndMark.
const (
	TierEphemeral = "ephemeral"
	TierWarm      = "warm"
	TierDurable   = "durable"
)

// WarmTier is a short-lived cache of processed signal keys. It is a cache,
// not a system of record: entries may vanish at any time.
type WarmTier interface {
	// Read returns the live keys for a chain.
	Read(ctx context.Context, chainID string) ([]string, error)
	// Mark records key and reports whether it was already live. The check
	// and the write happen as one step per key.
	Mark(ctx context.Context, chainID, key string) (bool, error)
	// Unmark forgets key.
	Unmark(ctx context.Context, chainID, key string) error
}

// DurableTier is the persisted seen ring.
type DurableTier interface {
	HasSeen(chainID, key string) bool
	MarkSeen(chainID, key string) error
	UnmarkSeen(chainID, key string) error
}

// GuardOptions configures a Guard.
type GuardOptions struct {
	ChainID string
	Warm    WarmTier    // optional
	Durable DurableTier // optional; nil when the record store is unavailable
	Logger  zerolog.Logger
}

// Guard checks and marks signal keys across all tiers for one chain.
// It is not safe for concurrent use; one cycle owns it at a time.
type Guard struct {
	chainID   string
	warm      WarmTier
	durable   DurableTier
	logger    zerolog.Logger
	ephemeral map[string]struct{}
	snapshot  map[string]struct{} // warm keys read by Prime
	claimed   map[string]struct{} // warm keys this guard marked
}

// NewGuard creates a guard.
func NewGuard(opts GuardOptions) *Guard {
	return &Guard{
		chainID:   opts.ChainID,
		warm:      opts.Warm,
		durable:   opts.Durable,
		logger:    opts.Logger.With().Str("chain", opts.ChainID).Logger(),
		ephemeral: make(map[string]struct{}),
		snapshot:  make(map[string]struct{}),
		claimed:   make(map[string]struct{}),
	}
}

// Prime snapshots the warm tier so known keys are rejected without a round
// trip. A read failure leaves the snapshot empty and is returned for
// logging; the guard stays usable.
func (g *Guard) Prime(ctx context.Context) error {
	g.snapshot = make(map[string]struct{})
	if g.warm == nil {
		return nil
	}
	keys, err := g.warm.Read(ctx, g.chainID)
	if err != nil {
		return err
	}
	for _, k := range keys {
		g.snapshot[k] = struct{}{}
	}
	return nil
}

// CheckAndMark reports whether key was already seen and in which tier.
// An unseen key is marked in every tier before returning. The warm tier
// is claimed with a single Mark call, so of two overlapping invocations
// sharing it only one gets false.
func (g *Guard) CheckAndMark(ctx context.Context, key string) (bool, string) {
	if _, ok := g.ephemeral[key]; ok {
		return true, TierEphemeral
	}
	if _, ok := g.snapshot[key]; ok {
		g.ephemeral[key] = struct{}{}
		return true, TierWarm
	}
	if g.durable != nil && g.durable.HasSeen(g.chainID, key) {
		g.ephemeral[key] = struct{}{}
		return true, TierDurable
	}

	if g.warm != nil {
		seen, err := g.warm.Mark(ctx, g.chainID, key)
		switch {
		case err != nil:
			g.logger.Warn().Err(err).Str("signal", key).Msg("warm dedup tier mark failed")
		case seen:
			g.ephemeral[key] = struct{}{}
			return true, TierWarm
		default:
			g.claimed[key] = struct{}{}
		}
	}
	g.ephemeral[key] = struct{}{}
	g.markDurable(key)
	return false, ""
}

// Commit marks key in every tier again. Called on a terminal outcome so a
// tier that failed during CheckAndMark gets another chance.
func (g *Guard) Commit(ctx context.Context, key string) {
	g.ephemeral[key] = struct{}{}
	if g.warm != nil {
		if _, ok := g.claimed[key]; !ok {
			if _, err := g.warm.Mark(ctx, g.chainID, key); err != nil {
				g.logger.Warn().Err(err).Str("signal", key).Msg("warm dedup tier mark failed")
			} else {
				g.claimed[key] = struct{}{}
			}
		}
	}
	g.markDurable(key)
}

// Release undoes CheckAndMark for a key whose processing was abandoned, so
// the next invocation evaluates it again.
func (g *Guard) Release(ctx context.Context, key string) {
	delete(g.ephemeral, key)
	if _, ok := g.claimed[key]; ok {
		delete(g.claimed, key)
		if err := g.warm.Unmark(ctx, g.chainID, key); err != nil {
			g.logger.Warn().Err(err).Str("signal", key).Msg("warm dedup tier unmark failed")
		}
	}
	if g.durable != nil {
		if err := g.durable.UnmarkSeen(g.chainID, key); err != nil {
			g.logger.Warn().Err(err).Str("signal", key).Msg("durable dedup tier unmark failed")
		}
	}
}

func (g *Guard) markDurable(key string) {
	if g.durable == nil {
		return
	}
	if err := g.durable.MarkSeen(g.chainID, key); err != nil {
		g.logger.Warn().Err(err).Str("signal", key).Msg("durable dedup tier mark failed")
	}
}
