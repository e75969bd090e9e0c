package records

import (
	"maps"

	"smart-money-tracker/internal/domain"
	"smart-money-tracker/internal/keys"
	"smart-money-tracker/internal/ring"
)

// TokenAggregate accumulates every signal seen for one token.
type TokenAggregate struct {
	ChainID       string                `json:"chain"`
	Address       string                `json:"addr"`
	Symbol        string                `json:"sym,omitempty"`
	FirstPrice    float64               `json:"p0"`
	LowPrice      float64               `json:"lo"`
	PeakPrice     float64               `json:"hi"`
	CurrentPrice  float64               `json:"px"`
	SignalCount   int                   `json:"n"`
	ScoredSignals int                   `json:"ns"`
	AverageScore  float64               `json:"avg"`
	KnownWallets  ring.Ring[string]     `json:"kw"`           // wallet address prefixes
	LastDelivered map[string]int64      `json:"ld,omitempty"` // sink name -> message handle
	Security      domain.SecurityStatus `json:"sec,omitempty"`
	LastSignalMs  int64                 `json:"ts"`
}

// NewTokenAggregate returns an empty aggregate for a token.
func NewTokenAggregate(chainID, address string) TokenAggregate {
	return TokenAggregate{
		ChainID:      chainID,
		Address:      address,
		KnownWallets: ring.New[string](KnownWalletCap),
	}
}

// Observe folds one signal into the aggregate. mean is the signal's mean
// entry score and only counts toward the running average when scored is true.
func (t *TokenAggregate) Observe(sig domain.Signal, mean float64, scored bool) {
	if sig.TokenSymbol != "" {
		t.Symbol = sig.TokenSymbol
	}
	if price := sig.PriceAtSignal; price > 0 {
		if t.FirstPrice <= 0 {
			t.FirstPrice = price
		}
		t.LowPrice = minPositive(t.LowPrice, price)
		if price > t.PeakPrice {
			t.PeakPrice = price
		}
		t.CurrentPrice = price
	}
	t.SignalCount++
	if scored {
		t.ScoredSignals++
		t.AverageScore += (mean - t.AverageScore) / float64(t.ScoredSignals)
	}
	if sig.EventTimeMs > t.LastSignalMs {
		t.LastSignalMs = sig.EventTimeMs
	}
}

// Knows reports whether the wallet was already counted for this token.
func (t TokenAggregate) Knows(wallet string) bool {
	return ring.Contains(t.KnownWallets, keys.Prefix(wallet))
}

// Remember marks a wallet as known. Returns false if it already was.
func (t *TokenAggregate) Remember(wallet string) bool {
	t.Normalize()
	return ring.PushUnique(&t.KnownWallets, keys.Prefix(wallet))
}

// Delivered returns the last message handle delivered to sink.
func (t TokenAggregate) Delivered(sink string) (int64, bool) {
	h, ok := t.LastDelivered[sink]
	return h, ok && h != 0
}

// SetDelivered records the last message handle delivered to sink.
func (t *TokenAggregate) SetDelivered(sink string, handle int64) {
	if t.LastDelivered == nil {
		t.LastDelivered = make(map[string]int64)
	}
	t.LastDelivered[sink] = handle
}

// Normalize restores ring capacities after decoding.
func (t *TokenAggregate) Normalize() {
	t.KnownWallets.SetCap(KnownWalletCap)
}

// Prune drops the oldest known wallets to shrink the record. Returns false
// when nothing is left to drop.
func (t *TokenAggregate) Prune() bool {
	n := t.KnownWallets.Len() / 5
	if n == 0 {
		n = 1
	}
	return t.KnownWallets.DropOldest(n) > 0
}

// Clone returns a deep copy.
func (t TokenAggregate) Clone() TokenAggregate {
	t.KnownWallets = t.KnownWallets.Clone()
	t.LastDelivered = maps.Clone(t.LastDelivered)
	return t
}

// MergeToken combines a cached aggregate with a newer snapshot. Price extremes
// widen, counters never go backwards and known wallets are unioned oldest first.
func MergeToken(existing, incoming TokenAggregate) TokenAggregate {
	out := incoming.Clone()
	if existing.FirstPrice > 0 {
		out.FirstPrice = existing.FirstPrice
	}
	out.LowPrice = minPositive(existing.LowPrice, incoming.LowPrice)
	out.PeakPrice = max(existing.PeakPrice, incoming.PeakPrice)
	if out.CurrentPrice <= 0 {
		out.CurrentPrice = existing.CurrentPrice
	}
	if out.Symbol == "" {
		out.Symbol = existing.Symbol
	}
	if existing.SignalCount > out.SignalCount {
		out.SignalCount = existing.SignalCount
	}
	if existing.ScoredSignals > out.ScoredSignals {
		out.ScoredSignals = existing.ScoredSignals
		out.AverageScore = existing.AverageScore
	}
	out.LastSignalMs = max(existing.LastSignalMs, incoming.LastSignalMs)
	if out.Security == "" || out.Security == domain.SecurityUnknown {
		if existing.Security != "" {
			out.Security = existing.Security
		}
	}

	known := ring.New(KnownWalletCap, existing.KnownWallets.Items()...)
	for _, w := range incoming.KnownWallets.Items() {
		ring.PushUnique(&known, w)
	}
	out.KnownWallets = known

	for sink, h := range existing.LastDelivered {
		if _, ok := out.LastDelivered[sink]; !ok {
			out.SetDelivered(sink, h)
		}
	}
	return out
}
