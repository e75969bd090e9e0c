package memory

import (
	"context"
	"sort"
	"sync"

	"smart-money-tracker/internal/domain"
	"smart-money-tracker/internal/storage"
)

// SignalArchive is an in-memory implementation of storage.SignalArchive.
type SignalArchive struct {
	mu       sync.RWMutex
	outcomes []*domain.SignalOutcome
}

// NewSignalArchive creates an empty in-memory archive.
func NewSignalArchive() *SignalArchive {
	return &SignalArchive{}
}

var _ storage.SignalArchive = (*SignalArchive)(nil)

// InsertBulk appends copies of the outcomes.
func (a *SignalArchive) InsertBulk(_ context.Context, outcomes []*domain.SignalOutcome) error {
	for _, o := range outcomes {
		if o == nil || o.SignalKey == "" {
			return storage.ErrInvalidInput
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, o := range outcomes {
		oc := *o
		a.outcomes = append(a.outcomes, &oc)
	}
	return nil
}

// GetByToken returns outcomes for a token ordered by processed time.
func (a *SignalArchive) GetByToken(_ context.Context, chainID, tokenAddress string) ([]*domain.SignalOutcome, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	var out []*domain.SignalOutcome
	for _, o := range a.outcomes {
		if o.ChainID == chainID && o.TokenAddress == tokenAddress {
			oc := *o
			out = append(out, &oc)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ProcessedAtMs < out[j].ProcessedAtMs
	})
	return out, nil
}

// All returns copies of every archived outcome in insertion order.
func (a *SignalArchive) All() []*domain.SignalOutcome {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]*domain.SignalOutcome, len(a.outcomes))
	for i, o := range a.outcomes {
		oc := *o
		out[i] = &oc
	}
	return out
}
