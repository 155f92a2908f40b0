package riskerr

import (
	"errors"
	"fmt"
)

// Category classifies errors by how callers should react to them.
type Category string

const (
	// Recoverable through retry or reconnection
	CategoryConnection Category = "CONNECTION"
	CategoryTimeout    Category = "TIMEOUT"

	// Log-and-continue: must never fail a trade decision
	CategoryPersistence Category = "PERSISTENCE"

	// Reject the single message/signal, keep processing others
	CategoryValidation Category = "VALIDATION"

	// Stop the process
	CategoryConfig      Category = "CONFIG"
	CategoryCredentials Category = "CREDENTIALS"
)

// Error is a categorized error with component context.
type Error struct {
	Category   Category
	Component  string
	Op         string
	Message    string
	Underlying error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("[%s:%s] %s: %s: %v", e.Category, e.Component, e.Op, e.Message, e.Underlying)
	}
	return fmt.Sprintf("[%s:%s] %s: %s", e.Category, e.Component, e.Op, e.Message)
}

// Unwrap returns the underlying error for error unwrapping
func (e *Error) Unwrap() error {
	return e.Underlying
}

// Retryable reports whether the operation can be retried.
func (e *Error) Retryable() bool {
	switch e.Category {
	case CategoryConnection, CategoryTimeout, CategoryPersistence:
		return true
	default:
		return false
	}
}

// Fatal reports whether the error should stop the process.
func (e *Error) Fatal() bool {
	return e.Category == CategoryConfig || e.Category == CategoryCredentials
}

// New creates a categorized error without an underlying cause.
func New(category Category, component, op, message string) *Error {
	return &Error{Category: category, Component: component, Op: op, Message: message}
}

// Wrap attaches category and component context to an existing error.
func Wrap(category Category, component, op, message string, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Category: category, Component: component, Op: op, Message: message, Underlying: err}
}

// CategoryOf extracts the category from an error chain, or "" if uncategorized.
func CategoryOf(err error) Category {
	var e *Error
	if errors.As(err, &e) {
		return e.Category
	}
	return ""
}
