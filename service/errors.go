package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when the addressed user, balance row or message does not exist
	ErrNotFound = errors.New("not found")

	// ErrInvalidAmount is returned for zero or otherwise meaningless amounts
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInsufficientCredits is returned when a debit would take a balance below zero
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// StoreError wraps a failure of the underlying database
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error during %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// storeError wraps err as a StoreError unless it already carries one of the
// ledger's own error kinds.
func storeError(op string, err error) error {
	if err == nil {
		return nil
	}
	var se *StoreError
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInsufficientCredits) || errors.As(err, &se) {
		return err
	}
	return &StoreError{Op: op, Err: err}
}
