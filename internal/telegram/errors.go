package telegram

import (
	"errors"
	"fmt"
	"strings"
)

// APIError is a Bot API error response (ok=false).
type APIError struct {
	Method      string
	Code        int
	Description string
	RetryAfter  int // seconds, set on 429
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram %s: %d %s", e.Method, e.Code, e.Description)
}

var goneMarkers = []string{
	"message to delete not found",
	"message to edit not found",
	"message to forward not found",
	"message to pin not found",
	"message can't be edited",
	"message can't be deleted",
	"message_id_invalid",
}

// IsMessageGone reports whether err says the target message no longer exists
// or can no longer be modified.
func IsMessageGone(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	desc := strings.ToLower(apiErr.Description)
	for _, m := range goneMarkers {
		if strings.Contains(desc, m) {
			return true
		}
	}
	return false
}

// IsNotModified reports whether an edit was rejected because nothing changed.
func IsNotModified(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return strings.Contains(strings.ToLower(apiErr.Description), "message is not modified")
}

// IsTooLarge reports whether the text or caption exceeded Bot API limits.
func IsTooLarge(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	desc := strings.ToLower(apiErr.Description)
	return strings.Contains(desc, "message is too long") || strings.Contains(desc, "caption is too long")
}
