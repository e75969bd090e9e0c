package recordstore

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Lifecycle is the part of a Partition the Store drives.
type Lifecycle interface {
	Name() string
	Loaded() bool
	Load(ctx context.Context) error
	Flush(ctx context.Context) error
	Sweep(ctx context.Context, now time.Time) (int, error)
}

// Store groups partitions so they are loaded, flushed and swept together.
type Store struct {
	parts []Lifecycle
}

// NewStore creates a Store over the given partitions.
func NewStore(parts ...Lifecycle) *Store {
	return &Store{parts: parts}
}

// Load loads every partition not loaded yet. The returned error matches
// ErrStoreUnavailable if any partition could not be loaded.
func (s *Store) Load(ctx context.Context) error {
	var errs []error
	for _, p := range s.parts {
		if p.Loaded() {
			continue
		}
		if err := p.Load(ctx); err != nil {
			if !errors.Is(err, ErrStoreUnavailable) {
				err = fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, p.Name(), err)
			}
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Loaded reports whether every partition is loaded.
func (s *Store) Loaded() bool {
	for _, p := range s.parts {
		if !p.Loaded() {
			return false
		}
	}
	return true
}

// Flush flushes every partition, continuing past failures.
func (s *Store) Flush(ctx context.Context) error {
	var errs []error
	for _, p := range s.parts {
		if err := p.Flush(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Sweep runs retention on every partition and returns removals per partition.
func (s *Store) Sweep(ctx context.Context, now time.Time) (map[string]int, error) {
	removed := make(map[string]int, len(s.parts))
	var errs []error
	for _, p := range s.parts {
		n, err := p.Sweep(ctx, now)
		removed[p.Name()] = n
		if err != nil {
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}
