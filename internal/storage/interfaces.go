package storage

import (
	"context"

	"smart-money-tracker/internal/domain"
)

// Handle identifies one record on a substrate partition (a message id).
// Zero means "not written".
type Handle int64

// Substrate is a size-limited, append/edit-capable message log split into
// partitions. Each partition has at most one pinned anchor record.
type Substrate interface {
	// Post appends a new record and returns its handle.
	Post(ctx context.Context, partition string, payload []byte) (Handle, error)

	// Edit replaces the payload of an existing record. Returns ErrNotFound if gone.
	Edit(ctx context.Context, partition string, h Handle, payload []byte) error

	// Delete removes a record. Returns ErrNotFound if already gone.
	Delete(ctx context.Context, partition string, h Handle) error

	// Read returns the payload of a record. Returns ErrNotFound if gone.
	Read(ctx context.Context, partition string, h Handle) ([]byte, error)

	// Pin makes h the partition's anchor, replacing any previous one.
	Pin(ctx context.Context, partition string, h Handle) error

	// Anchor returns the pinned anchor handle. Returns ErrNoAnchor if none.
	Anchor(ctx context.Context, partition string) (Handle, error)

	// MaxPayload is the per-record size ceiling in bytes.
	MaxPayload() int
}

// SignalArchive is an append-only log of processed signals.
type SignalArchive interface {
	// InsertBulk appends outcomes. An empty slice is a no-op.
	InsertBulk(ctx context.Context, outcomes []*domain.SignalOutcome) error

	// GetByToken returns archived outcomes for a token, ordered by processed time ASC.
	GetByToken(ctx context.Context, chainID, tokenAddress string) ([]*domain.SignalOutcome, error)
}
