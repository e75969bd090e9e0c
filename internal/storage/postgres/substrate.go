package postgres

import (
	"context"
	"fmt"

	"smart-money-tracker/internal/storage"
)

// DefaultMaxPayload keeps records the same size as on the Telegram substrate,
// so partitions can move between backends.
const DefaultMaxPayload = 4096

// Substrate implements storage.Substrate on a PostgreSQL message table.
type Substrate struct {
	pool       *Pool
	maxPayload int
}

// NewSubstrate creates a Substrate. A non-positive ceiling uses DefaultMaxPayload.
func NewSubstrate(pool *Pool, maxPayload int) *Substrate {
	if maxPayload <= 0 {
		maxPayload = DefaultMaxPayload
	}
	return &Substrate{pool: pool, maxPayload: maxPayload}
}

// Compile-time interface check.
var _ storage.Substrate = (*Substrate)(nil)

// Post appends a record.
func (s *Substrate) Post(ctx context.Context, partition string, payload []byte) (storage.Handle, error) {
	if partition == "" {
		return 0, storage.ErrInvalidInput
	}
	if len(payload) > s.maxPayload {
		return 0, storage.ErrPayloadTooLarge
	}

	query := `
		INSERT INTO substrate_messages (partition, payload)
		VALUES ($1, $2)
		RETURNING id
	`

	var id int64
	if err := s.pool.QueryRow(ctx, query, partition, string(payload)).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert substrate message: %w", err)
	}
	return storage.Handle(id), nil
}

// Edit replaces a record's payload. Returns ErrNotFound if gone.
func (s *Substrate) Edit(ctx context.Context, partition string, h storage.Handle, payload []byte) error {
	if len(payload) > s.maxPayload {
		return storage.ErrPayloadTooLarge
	}

	query := `
		UPDATE substrate_messages
		SET payload = $3, updated_at = now()
		WHERE partition = $1 AND id = $2
	`

	tag, err := s.pool.Exec(ctx, query, partition, int64(h), string(payload))
	if err != nil {
		return fmt.Errorf("update substrate message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Delete removes a record. Its anchor row, if any, goes with it.
func (s *Substrate) Delete(ctx context.Context, partition string, h storage.Handle) error {
	query := `DELETE FROM substrate_messages WHERE partition = $1 AND id = $2`

	tag, err := s.pool.Exec(ctx, query, partition, int64(h))
	if err != nil {
		return fmt.Errorf("delete substrate message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Read returns a record's payload. Returns ErrNotFound if gone.
func (s *Substrate) Read(ctx context.Context, partition string, h storage.Handle) ([]byte, error) {
	query := `SELECT payload FROM substrate_messages WHERE partition = $1 AND id = $2`

	var payload string
	if err := s.pool.QueryRow(ctx, query, partition, int64(h)).Scan(&payload); err != nil {
		if isMissingMessage(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("read substrate message: %w", err)
	}
	return []byte(payload), nil
}

// Pin makes h the partition anchor.
func (s *Substrate) Pin(ctx context.Context, partition string, h storage.Handle) error {
	// partition check: a handle from another partition must not become an anchor
	query := `
		INSERT INTO substrate_anchors (partition, message_id)
		SELECT partition, id FROM substrate_messages WHERE partition = $1 AND id = $2
		ON CONFLICT (partition) DO UPDATE
		SET message_id = EXCLUDED.message_id, pinned_at = now()
	`

	tag, err := s.pool.Exec(ctx, query, partition, int64(h))
	if err != nil {
		if isMissingMessage(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("pin substrate message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// Anchor returns the pinned anchor handle.
func (s *Substrate) Anchor(ctx context.Context, partition string) (storage.Handle, error) {
	query := `SELECT message_id FROM substrate_anchors WHERE partition = $1`

	var id int64
	if err := s.pool.QueryRow(ctx, query, partition).Scan(&id); err != nil {
		if isMissingMessage(err) {
			return 0, storage.ErrNoAnchor
		}
		return 0, fmt.Errorf("get substrate anchor: %w", err)
	}
	return storage.Handle(id), nil
}

// MaxPayload returns the payload ceiling.
func (s *Substrate) MaxPayload() int {
	return s.maxPayload
}
