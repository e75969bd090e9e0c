package records

import (
	"maps"
	"math"
	"sort"

	"smart-money-tracker/internal/keys"
	"smart-money-tracker/internal/ring"
)

// WalletEntry is a wallet's entry into one token.
type WalletEntry struct {
	EntryPrice float64 `json:"p"`
	Score      float64 `json:"s"`
	Scored     bool    `json:"ok"`
	TimeMs     int64   `json:"t"`
}

// WalletAggregate accumulates every appearance of one wallet.
type WalletAggregate struct {
	ChainID         string                 `json:"chain"`
	Address         string                 `json:"addr"`
	AppearanceCount int                    `json:"n"`
	ScoredCount     int                    `json:"ns"`
	AverageScore    float64                `json:"avg"`
	RecentScores    ring.Ring[float64]     `json:"rs"`
	Consistency     float64                `json:"cons"`
	Entries         map[string]WalletEntry `json:"e,omitempty"` // token prefix -> entry
	LastSeenMs      int64                  `json:"ts"`
}

// NewWalletAggregate returns an empty aggregate for a wallet.
func NewWalletAggregate(chainID, address string) WalletAggregate {
	return WalletAggregate{
		ChainID:      chainID,
		Address:      address,
		RecentScores: ring.New[float64](RecentScoreCap),
	}
}

// Observe records one appearance of the wallet in a signal for token.
func (w *WalletAggregate) Observe(token string, entryPrice, score float64, scored bool, atMs int64) {
	w.Normalize()
	w.AppearanceCount++
	if scored {
		w.ScoredCount++
		w.AverageScore += (score - w.AverageScore) / float64(w.ScoredCount)
		w.RecentScores.Push(score)
		w.Consistency = consistency(w.RecentScores.Items())
	}
	if w.Entries == nil {
		w.Entries = make(map[string]WalletEntry)
	}
	w.Entries[keys.Prefix(token)] = WalletEntry{EntryPrice: entryPrice, Score: score, Scored: scored, TimeMs: atMs}
	w.trimEntries(MaxWalletEntries)
	if atMs > w.LastSeenMs {
		w.LastSeenMs = atMs
	}
}

// consistency is 1 minus the population standard deviation of scores
// normalized by the widest possible deviation (2), clamped to [0,1].
func consistency(scores []float64) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	mean := sum / float64(len(scores))
	var sq float64
	for _, s := range scores {
		sq += (s - mean) * (s - mean)
	}
	c := 1 - math.Sqrt(sq/float64(len(scores)))/2
	return math.Max(0, math.Min(1, c))
}

// trimEntries keeps the limit most recent token entries.
func (w *WalletAggregate) trimEntries(limit int) {
	if len(w.Entries) <= limit {
		return
	}
	type kv struct {
		token string
		at    int64
	}
	all := make([]kv, 0, len(w.Entries))
	for k, e := range w.Entries {
		all = append(all, kv{k, e.TimeMs})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].at != all[j].at {
			return all[i].at < all[j].at
		}
		return all[i].token < all[j].token
	})
	for _, e := range all[:len(all)-limit] {
		delete(w.Entries, e.token)
	}
}

// Normalize restores ring capacities after decoding.
func (w *WalletAggregate) Normalize() {
	w.RecentScores.SetCap(RecentScoreCap)
}

// Prune halves the token entries, oldest first. Returns false when nothing
// is left to drop.
func (w *WalletAggregate) Prune() bool {
	n := len(w.Entries)
	if n == 0 {
		return false
	}
	w.trimEntries(n / 2)
	return true
}

// Clone returns a deep copy.
func (w WalletAggregate) Clone() WalletAggregate {
	w.RecentScores = w.RecentScores.Clone()
	w.Entries = maps.Clone(w.Entries)
	return w
}

// MergeWallet combines a cached aggregate with a newer snapshot. The snapshot
// with more appearances wins the counters; token entries are unioned keeping
// the most recent entry per token.
func MergeWallet(existing, incoming WalletAggregate) WalletAggregate {
	base, other := incoming.Clone(), existing
	if existing.AppearanceCount > incoming.AppearanceCount {
		base, other = existing.Clone(), incoming
	}
	for token, e := range other.Entries {
		if cur, ok := base.Entries[token]; ok && cur.TimeMs >= e.TimeMs {
			continue
		}
		if base.Entries == nil {
			base.Entries = make(map[string]WalletEntry)
		}
		base.Entries[token] = e
	}
	base.trimEntries(MaxWalletEntries)
	base.LastSeenMs = max(existing.LastSeenMs, incoming.LastSeenMs)
	base.Normalize()
	return base
}
