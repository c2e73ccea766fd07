package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrTemporary marks a provider failure worth retrying. Drivers wrap
	// transient transport and 5xx/429 errors with it so the retry loop in
	// Model can distinguish them from permanent failures.
	ErrTemporary = errors.New("temporary error")

	// ErrBudgetExceeded is returned by a Limiter once its token budget is
	// spent. It is never retryable.
	ErrBudgetExceeded = errors.New("token budget exceeded")
)

type StatusError struct {
	StatusCode   int
	Status       string
	ErrorMessage string
}

func (e StatusError) Error() string {
	return fmt.Sprintf("status: %s, code: %d, error: %s", e.Status, e.StatusCode, e.ErrorMessage)
}
