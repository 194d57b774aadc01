package services

import (
	"errors"
	"fmt"
	"time"
)

// ValidationError marks malformed user input (photo format/size, bad
// personality text). The message is safe to show to the user.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// APIError carries the upstream HTTP status of a failed provider call.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Message)
}

// RateLimitError is raised when the provider kept answering 429 after
// internal retries. Callers must surface it distinctly so the user can
// be told to wait RetryAfter before trying again.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

func IsRateLimit(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
