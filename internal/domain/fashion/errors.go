package fashion

import (
	"errors"
	"fmt"
)

var (
	// ErrInput marks malformed or missing request fields.
	ErrInput = errors.New("invalid input")
	// ErrNoGarmentDetected means segmentation found no garment pixel.
	ErrNoGarmentDetected = errors.New("no garment detected")
	// ErrEmptyIndex is returned by similarity searches over an empty index.
	ErrEmptyIndex = errors.New("similarity index is empty")
	// ErrNoMatch is a valid query with zero results.
	ErrNoMatch  = errors.New("no matching products")
	ErrNotFound = errors.New("not found")
)

// ExternalServiceError wraps a failed call to a model, LLM or store backend.
type ExternalServiceError struct {
	Service string
	Op      string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Service, e.Op, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }

func External(service, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ExternalServiceError{Service: service, Op: op, Err: err}
}

func InputErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInput, fmt.Sprintf(format, args...))
}

func IsExternal(err error) bool {
	var ext *ExternalServiceError
	return errors.As(err, &ext)
}
