package recordstore

import (
	"errors"
	"fmt"
)

var (
	// ErrRecordTooLarge is returned when a serialized record exceeds the
	// substrate ceiling. Records are never truncated.
	ErrRecordTooLarge = errors.New("record too large")

	// ErrStoreUnavailable is returned by Load when the substrate cannot be reached.
	ErrStoreUnavailable = errors.New("record store unavailable")
)

// TooLargeError carries the size details of an oversized record.
type TooLargeError struct {
	Partition string
	Key       string
	Size      int
	Limit     int
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("%s %q: %d bytes exceeds %d: %v", e.Partition, e.Key, e.Size, e.Limit, ErrRecordTooLarge)
}

// Is matches ErrRecordTooLarge.
func (e *TooLargeError) Is(target error) bool {
	return target == ErrRecordTooLarge
}
