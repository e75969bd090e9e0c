package records

import (
	"maps"

	"smart-money-tracker/internal/domain"
)

// SignalRecord is the persisted terminal outcome of one signal.
type SignalRecord struct {
	ChainID       string                `json:"chain"`
	TokenAddress  string                `json:"token"`
	TokenSymbol   string                `json:"sym,omitempty"`
	BatchID       string                `json:"batch"`
	BatchIndex    int                   `json:"idx"`
	EventTimeMs   int64                 `json:"ts"`
	PriceAtSignal float64               `json:"px"`
	McapAtSignal  float64               `json:"mcap"`
	Outcome       domain.Outcome        `json:"out"`
	Reason        string                `json:"why,omitempty"`
	MeanScore     float64               `json:"avg"`
	ScoredWallets int                   `json:"ns"`
	NewWallets    int                   `json:"new"`
	RepeatWallets int                   `json:"rep"`
	Security      domain.SecurityStatus `json:"sec,omitempty"`
	Delivered     map[string]int64      `json:"dl,omitempty"` // sink name -> message handle
}

// NewSignalRecord starts a record from the signal's identity and market data.
func NewSignalRecord(sig domain.Signal) SignalRecord {
	return SignalRecord{
		ChainID:       sig.ChainID,
		TokenAddress:  sig.TokenAddress,
		TokenSymbol:   sig.TokenSymbol,
		BatchID:       sig.BatchID,
		BatchIndex:    sig.BatchIndex,
		EventTimeMs:   sig.EventTimeMs,
		PriceAtSignal: sig.PriceAtSignal,
		McapAtSignal:  sig.McapAtSignal,
	}
}

// Clone returns a deep copy.
func (s SignalRecord) Clone() SignalRecord {
	s.Delivered = maps.Clone(s.Delivered)
	return s
}

// MergeSignal takes the newer outcome and keeps delivery handles from both.
func MergeSignal(existing, incoming SignalRecord) SignalRecord {
	out := incoming.Clone()
	for sink, h := range existing.Delivered {
		if _, ok := out.Delivered[sink]; !ok {
			if out.Delivered == nil {
				out.Delivered = make(map[string]int64)
			}
			out.Delivered[sink] = h
		}
	}
	return out
}
