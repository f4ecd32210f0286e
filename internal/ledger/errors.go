package ledger

import (
	"context"
	"errors"
	"fmt"
)

// Client errors. They are terminal: retrying the same request cannot succeed.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalidInput = errors.New("invalid input")
)

var (
	ErrInsufficientBalance = fmt.Errorf("%w: insufficient balance", ErrForbidden)
	ErrOtherFamily         = fmt.Errorf("%w: member belongs to another family", ErrForbidden)
)

// ErrTransient marks storage failures. The whole operation was rolled back
// and is safe to retry.
var ErrTransient = errors.New("transient failure")

// IsClientError reports whether err is one of the terminal client errors.
func IsClientError(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrInvalidInput)
}

// classify passes client errors and cancellations through unchanged and tags
// everything else as transient.
func classify(err error) error {
	if err == nil || IsClientError(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}
