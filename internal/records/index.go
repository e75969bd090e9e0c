package records

import (
	"sort"

	"smart-money-tracker/internal/ring"
)

// Performer is one ranked wallet in an index record.
type Performer struct {
	Wallet       string  `json:"w"`
	AverageScore float64 `json:"avg"`
	Appearances  int     `json:"n"`
}

// IndexRecord is the per-chain bootstrap record. Seen holds recent signal
// keys for deduplication only.
type IndexRecord struct {
	ChainID       string            `json:"chain"`
	Seen          ring.Ring[string] `json:"seen"`
	TotalSignals  int               `json:"sig"`
	TotalTokens   int               `json:"tok"`
	TotalWallets  int               `json:"wal"`
	TopPerformers []Performer       `json:"top,omitempty"`
}

// NewIndexRecord returns an empty index for a chain.
func NewIndexRecord(chainID string) IndexRecord {
	return IndexRecord{ChainID: chainID, Seen: ring.New[string](SeenSignalCap)}
}

// HasSeen reports whether a signal key is in the seen ring.
func (r IndexRecord) HasSeen(key string) bool {
	return ring.Contains(r.Seen, key)
}

// MarkSeen adds a signal key to the seen ring. Returns false if it was already there.
func (r *IndexRecord) MarkSeen(key string) bool {
	r.Normalize()
	return ring.PushUnique(&r.Seen, key)
}

// UnmarkSeen removes a signal key from the seen ring. Returns false if it was not there.
func (r *IndexRecord) UnmarkSeen(key string) bool {
	r.Normalize()
	return ring.Remove(&r.Seen, key)
}

// Normalize restores ring capacities after decoding.
func (r *IndexRecord) Normalize() {
	r.Seen.SetCap(SeenSignalCap)
}

// Prune drops the oldest fifth of the seen ring. Returns false when it is empty.
func (r *IndexRecord) Prune() bool {
	n := r.Seen.Len() / 5
	if n == 0 {
		n = 1
	}
	return r.Seen.DropOldest(n) > 0
}

// Clone returns a deep copy.
func (r IndexRecord) Clone() IndexRecord {
	r.Seen = r.Seen.Clone()
	r.TopPerformers = append([]Performer(nil), r.TopPerformers...)
	return r
}

// MergeIndex unions the seen rings and keeps the larger counters.
func MergeIndex(existing, incoming IndexRecord) IndexRecord {
	out := incoming.Clone()
	seen := ring.New(SeenSignalCap, existing.Seen.Items()...)
	for _, k := range incoming.Seen.Items() {
		ring.PushUnique(&seen, k)
	}
	out.Seen = seen
	out.TotalSignals = max(existing.TotalSignals, incoming.TotalSignals)
	out.TotalTokens = max(existing.TotalTokens, incoming.TotalTokens)
	out.TotalWallets = max(existing.TotalWallets, incoming.TotalWallets)
	if out.TopPerformers == nil {
		out.TopPerformers = append([]Performer(nil), existing.TopPerformers...)
	}
	return out
}

// RankPerformers returns the best wallets by running average among those
// with at least TopPerformerMin appearances, best first.
func RankPerformers(wallets []WalletAggregate) []Performer {
	var out []Performer
	for _, w := range wallets {
		if w.AppearanceCount < TopPerformerMin || w.ScoredCount == 0 {
			continue
		}
		out = append(out, Performer{Wallet: w.Address, AverageScore: w.AverageScore, Appearances: w.AppearanceCount})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageScore != out[j].AverageScore {
			return out[i].AverageScore > out[j].AverageScore
		}
		if out[i].Appearances != out[j].Appearances {
			return out[i].Appearances > out[j].Appearances
		}
		return out[i].Wallet < out[j].Wallet
	})
	if len(out) > TopPerformerLimit {
		out = out[:TopPerformerLimit]
	}
	return out
}
