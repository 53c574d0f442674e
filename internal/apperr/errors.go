// Package apperr defines the error kinds shared by ledgers and their adapters.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrStorage    = errors.New("storage failure")
)

// ValidationError reports bad user input. It is returned to the caller and
// never persisted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return e.Field + ": " + e.Reason
}

// Is makes errors.Is(err, ErrValidation) hold.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError for a single field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// FromValidation converts ozzo validation output into a ValidationError.
// Errors that are not validation failures are returned unchanged.
func FromValidation(err error) error {
	if err == nil {
		return nil
	}
	var errs validation.Errors
	if !errors.As(err, &errs) {
		var single validation.Error
		if errors.As(err, &single) {
			return &ValidationError{Reason: single.Error()}
		}
		return err
	}
	fields := make([]string, 0, len(errs))
	for f := range errs {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	first := fields[0]
	reason := errs[first].Error()
	if len(fields) > 1 {
		rest := make([]string, 0, len(fields)-1)
		for _, f := range fields[1:] {
			rest = append(rest, f+": "+errs[f].Error())
		}
		reason += " (also " + strings.Join(rest, "; ") + ")"
	}
	return &ValidationError{Field: first, Reason: reason}
}

// StorageError wraps a persistence read or write failure.
type StorageError struct {
	Op  string // "load" or "save"
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStorage) hold.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }

// NotFound wraps ErrNotFound with the missing id.
func NotFound(kind, id string) error {
	return fmt.Errorf("%s %q: %w", kind, id, ErrNotFound)
}
