package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConfiguration    = errors.New("configuration error")
	ErrModelUnavailable = errors.New("model unavailable")
	ErrInference        = errors.New("inference failed")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// ValidationError reports a raw applicant field outside its allowed range or vocabulary.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// KindName returns a stable, client-facing name for the error kind carried by err.
func KindName(err error) string {
	switch {
	case err == nil:
		return ""
	case IsKind(err, ErrInvalidInput):
		return "validation"
	case IsKind(err, ErrConfiguration):
		return "configuration"
	case IsKind(err, ErrModelUnavailable):
		return "model_unavailable"
	case IsKind(err, ErrInference):
		return "inference"
	case IsKind(err, ErrNotFound):
		return "not_found"
	case IsKind(err, ErrTemporary):
		return "temporary"
	default:
		return "internal"
	}
}
