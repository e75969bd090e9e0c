package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sony/gobreaker"
)

// FetchError is returned for every failed provider call: transport failures,
// non-2xx responses, provider-level error codes and malformed payloads.
type FetchError struct {
	Op         string // operation name, e.g. "activity", "candles"
	StatusCode int    // HTTP status, 0 when no response was received
	Code       string // provider error code, empty when not applicable
	Message    string // provider message or response excerpt
	Err        error  // underlying cause
}

func (e *FetchError) Error() string {
	switch {
	case e.Code != "":
		return fmt.Sprintf("upstream %s: provider code %s: %s", e.Op, e.Code, e.Message)
	case e.StatusCode != 0:
		return fmt.Sprintf("upstream %s: status %d: %s", e.Op, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("upstream %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("upstream %s: %s", e.Op, e.Message)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Degradable reports whether the failure is transient (network, timeout,
// rate limit, server error, open breaker). Callers continue with a degraded
// field for these; anything else is a rejection by the provider.
func (e *FetchError) Degradable() bool {
	if e.Code != "" {
		return false
	}
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500 {
		return true
	}
	if e.StatusCode != 0 {
		return false
	}
	if errors.Is(e.Err, errMalformed) {
		return false
	}
	return e.Err != nil
}

// IsDegradable reports whether err is a degradable *FetchError.
func IsDegradable(err error) bool {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Degradable()
	}
	return false
}

var errMalformed = errors.New("malformed response")

// retryable reports whether another attempt may succeed.
func retryable(err *FetchError) bool {
	if errors.Is(err.Err, context.Canceled) || errors.Is(err.Err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err.Err, gobreaker.ErrOpenState) || errors.Is(err.Err, gobreaker.ErrTooManyRequests) {
		return false
	}
	return err.Degradable()
}
