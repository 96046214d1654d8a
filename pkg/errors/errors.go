// Package errors provides error wrapping utilities for context-aware error messages.
package errors

import (
	stderrors "errors"
	"fmt"
)

// Wrap wraps an error with additional context information.
// If err is nil, it returns nil without wrapping.
func Wrap(err error, context string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", context, err)
}

// Wrapf is Wrap with a formatted context.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// New mirrors errors.New so callers need a single errors import.
func New(text string) error {
	return stderrors.New(text)
}

// Is mirrors errors.Is.
func Is(err, target error) bool {
	return stderrors.Is(err, target)
}

// As mirrors errors.As.
func As(err error, target any) bool {
	return stderrors.As(err, target)
}
