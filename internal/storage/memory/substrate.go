package memory

import (
	"context"
	"sync"

	"smart-money-tracker/internal/storage"
)

// DefaultMaxPayload matches the Telegram text message limit.
const DefaultMaxPayload = 4096

// Substrate is an in-memory implementation of storage.Substrate.
type Substrate struct {
	mu         sync.RWMutex
	maxPayload int
	nextID     storage.Handle
	records    map[string]map[storage.Handle][]byte // partition -> handle -> payload
	anchors    map[string]storage.Handle
}

// NewSubstrate creates an in-memory substrate with the given payload ceiling.
// A non-positive ceiling uses DefaultMaxPayload.
func NewSubstrate(maxPayload int) *Substrate {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Substrate{
		maxPayload: maxPayload,
		records:    make(map[string]map[storage.Handle][]byte),
		anchors:    make(map[string]storage.Handle),
	}
}

var _ storage.Substrate = (*Substrate)(nil)

// Post appends a record.
func (s *Substrate) Post(_ context.Context, partition string, payload []byte) (storage.Handle, error) {
	if partition == "" {
		return 0, storage.ErrInvalidInput
	}
	if len(payload) > s.maxPayload {
		return 0, storage.ErrPayloadTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	part, ok := s.records[partition]
	if !ok {
		part = make(map[storage.Handle][]byte)
		s.records[partition] = part
	}
	part[s.nextID] = append([]byte(nil), payload...)
	return s.nextID, nil
}

// Edit replaces a record's payload.
func (s *Substrate) Edit(_ context.Context, partition string, h storage.Handle, payload []byte) error {
	if len(payload) > s.maxPayload {
		return storage.ErrPayloadTooLarge
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	part := s.records[partition]
	if _, ok := part[h]; !ok {
		return storage.ErrNotFound
	}
	part[h] = append([]byte(nil), payload...)
	return nil
}

// Delete removes a record. Deleting the anchor record unpins it.
func (s *Substrate) Delete(_ context.Context, partition string, h storage.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	part := s.records[partition]
	if _, ok := part[h]; !ok {
		return storage.ErrNotFound
	}
	delete(part, h)
	if s.anchors[partition] == h {
		delete(s.anchors, partition)
	}
	return nil
}

// Read returns a copy of a record's payload.
func (s *Substrate) Read(_ context.Context, partition string, h storage.Handle) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	payload, ok := s.records[partition][h]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return append([]byte(nil), payload...), nil
}

// Pin sets the partition anchor.
func (s *Substrate) Pin(_ context.Context, partition string, h storage.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[partition][h]; !ok {
		return storage.ErrNotFound
	}
	s.anchors[partition] = h
	return nil
}

// Anchor returns the pinned anchor.
func (s *Substrate) Anchor(_ context.Context, partition string) (storage.Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	h, ok := s.anchors[partition]
	if !ok {
		return 0, storage.ErrNoAnchor
	}
	return h, nil
}

// MaxPayload returns the payload ceiling.
func (s *Substrate) MaxPayload() int {
	return s.maxPayload
}

// Len returns the number of live records in a partition.
func (s *Substrate) Len(partition string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records[partition])
}
