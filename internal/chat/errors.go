package chat

import (
	"errors"
	"fmt"
)

// Error kinds. Every error the core returns matches exactly one of these
// with errors.Is.
var (
	ErrValidation           = errors.New("validation failed")
	ErrParse                = errors.New("malformed inference reply")
	ErrStoreUnavailable     = errors.New("history store unavailable")
	ErrInferenceUnavailable = errors.New("inference unavailable")
)

// ValidationError rejects inbound input before any store or model call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ParseError means the model answered with something outside the envelope.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrParse, e.Field, e.Reason)
}

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// StoreUnavailableError is a failed history write or read. Sequence is zero
// for reads.
type StoreUnavailableError struct {
	SessionID string
	Sequence  int
	Err       error
}

func (e *StoreUnavailableError) Error() string {
	if e.Sequence > 0 {
		return fmt.Sprintf("%s: session %s sequence %d: %v", ErrStoreUnavailable, e.SessionID, e.Sequence, e.Err)
	}
	return fmt.Sprintf("%s: session %s: %v", ErrStoreUnavailable, e.SessionID, e.Err)
}

func (e *StoreUnavailableError) Is(target error) bool { return target == ErrStoreUnavailable }

func (e *StoreUnavailableError) Unwrap() error { return e.Err }

// InferenceUnavailableError is a model call that failed after the transport
// gave up retrying.
type InferenceUnavailableError struct {
	Provider string
	Err      error
}

func (e *InferenceUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrInferenceUnavailable, e.Provider, e.Err)
}

func (e *InferenceUnavailableError) Is(target error) bool { return target == ErrInferenceUnavailable }

func (e *InferenceUnavailableError) Unwrap() error { return e.Err }
