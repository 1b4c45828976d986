package contentsafety

import (
	"errors"
	"fmt"
)

// ErrMissingCredential is returned when no moderation API key is configured.
// Callers treat it as "screening disabled", never as a failure to retry.
var ErrMissingCredential = errors.New("contentsafety: moderation API key is not configured")

// ExternalServiceError wraps any failure talking to the moderation API.
type ExternalServiceError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *ExternalServiceError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("contentsafety %s: status %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("contentsafety %s: %v", e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

// Retryable is always true: transport errors, timeouts, bad statuses and
// malformed bodies are all worth another attempt.
func (e *ExternalServiceError) Retryable() bool { return true }
