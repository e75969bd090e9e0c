package storage

import "errors"

// Storage errors shared by every substrate and archive backend.
var (
	// ErrNotFound is returned when a record no longer exists on the substrate
	// (deleted, expired, or never written).
	ErrNotFound = errors.New("not found")

	// ErrNoAnchor is returned when a partition has no pinned bootstrap anchor yet.
	ErrNoAnchor = errors.New("no anchor")

	// ErrDuplicateKey is returned when attempting to insert a record
	// with a key that already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPayloadTooLarge is returned by a substrate that refuses a payload
	// above its MaxPayload.
	ErrPayloadTooLarge = errors.New("payload too large")
)
