// Package ring provides a capped FIFO buffer used by every bounded collection
// in the persisted records (seen-signal keys, score history, wallet prefixes).
package ring

import "encoding/json"

// Ring keeps at most Cap items; pushing onto a full ring evicts the oldest.
// The zero value is an empty ring with no capacity limit until SetCap is called.
// Rings serialize as a plain JSON array, oldest first.
type Ring[T any] struct {
	limit int
	items []T
}

// New creates a ring with the given capacity, seeded with items (oldest first).
// If more than limit items are given, only the newest are kept.
func New[T any](limit int, items ...T) Ring[T] {
	r := Ring[T]{limit: limit}
	for _, v := range items {
		r.Push(v)
	}
	return r
}

// Push appends v, evicting the oldest item if the ring is full.
// Returns the evicted item and true when an eviction happened.
func (r *Ring[T]) Push(v T) (T, bool) {
	var evicted T
	dropped := false
	if r.limit > 0 && len(r.items) >= r.limit {
		evicted = r.items[0]
		r.items = append(r.items[:0], r.items[1:]...)
		dropped = true
	}
	r.items = append(r.items, v)
	return evicted, dropped
}

// SetCap changes the capacity, dropping the oldest items if the ring is over it.
func (r *Ring[T]) SetCap(limit int) {
	r.limit = limit
	if limit > 0 && len(r.items) > limit {
		r.DropOldest(len(r.items) - limit)
	}
}

// DropOldest removes up to n of the oldest items and returns how many were removed.
func (r *Ring[T]) DropOldest(n int) int {
	if n <= 0 {
		return 0
	}
	if n > len(r.items) {
		n = len(r.items)
	}
	r.items = append(r.items[:0], r.items[n:]...)
	return n
}

// Len returns the number of items held.
func (r Ring[T]) Len() int { return len(r.items) }

// Cap returns the capacity (0 = unbounded).
func (r Ring[T]) Cap() int { return r.limit }

// Items returns a copy of the items, oldest first.
func (r Ring[T]) Items() []T {
	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Clone returns an independent copy of the ring.
func (r Ring[T]) Clone() Ring[T] {
	return Ring[T]{limit: r.limit, items: r.Items()}
}

// MarshalJSON encodes the ring as an array, oldest first.
func (r Ring[T]) MarshalJSON() ([]byte, error) {
	if r.items == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(r.items)
}

// UnmarshalJSON decodes an array. The capacity is not part of the wire format;
// owners re-apply it with SetCap after decoding.
func (r *Ring[T]) UnmarshalJSON(data []byte) error {
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	r.items = items
	if r.limit > 0 && len(r.items) > r.limit {
		r.DropOldest(len(r.items) - r.limit)
	}
	return nil
}

// Contains reports whether v is held in the ring.
func Contains[T comparable](r Ring[T], v T) bool {
	for _, item := range r.items {
		if item == v {
			return true
		}
	}
	return false
}

// PushUnique pushes v unless it is already held. Returns true if v was added.
func PushUnique[T comparable](r *Ring[T], v T) bool {
	if Contains(*r, v) {
		return false
	}
	r.Push(v)
	return true
}

// Remove drops every occurrence of v. Returns true if anything was removed.
func Remove[T comparable](r *Ring[T], v T) bool {
	kept := r.items[:0]
	for _, item := range r.items {
		if item != v {
			kept = append(kept, item)
		}
	}
	removed := len(kept) != len(r.items)
	r.items = kept
	return removed
}
