package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound       = errors.New("resource not found")
	ErrMatrixNotFound = fmt.Errorf("%w: detection matrix", ErrNotFound)
	ErrRunNotFound    = fmt.Errorf("%w: run", ErrNotFound)

	// Validation errors
	ErrInvalidConfig     = errors.New("invalid qubit configuration")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrQubitOutOfRange   = errors.New("qubit index out of range")
	ErrInvalidMatrixName = errors.New("invalid matrix file name")
	ErrTrialsTooFew      = errors.New("trial count below stored detections")

	// Bounded-iteration errors
	ErrRetryBudgetExhausted = errors.New("no conclusive trial within retry budget")
	ErrResampleExhausted    = errors.New("only identity unitaries drawn within resample budget")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewConfigError(dataQubits, signatureQubits, maxTotal int) error {
	return fmt.Errorf("%w: data=%d signature=%d max_total=%d", ErrInvalidConfig, dataQubits, signatureQubits, maxTotal)
}

func NewDimensionError(want, got int) error {
	return fmt.Errorf("%w: want %d qubits, got %d", ErrDimensionMismatch, want, got)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrDimensionMismatch) ||
		errors.Is(err, ErrQubitOutOfRange) ||
		errors.Is(err, ErrInvalidMatrixName) ||
		errors.Is(err, ErrTrialsTooFew)
}

func IsBudgetError(err error) bool {
	return errors.Is(err, ErrRetryBudgetExhausted) ||
		errors.Is(err, ErrResampleExhausted)
}
