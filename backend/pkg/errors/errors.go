package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the category of error
type ErrorType string

const (
	// ErrorTypeNotFound represents a referenced entity that is absent or malformed
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeValidation represents an empty or too-long text field
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeNotAuthorized represents an actor lacking the required relationship to a target
	ErrorTypeNotAuthorized ErrorType = "not_authorized"
	// ErrorTypeDuplicate represents a uniqueness invariant violation
	ErrorTypeDuplicate ErrorType = "duplicate"
	// ErrorTypeStore represents a transient storage failure
	ErrorTypeStore ErrorType = "store"
	// ErrorTypeConfig represents configuration errors
	ErrorTypeConfig ErrorType = "config"
)

// BaseError is the base error type with common fields
type BaseError struct {
	Type      ErrorType
	Message   string
	Timestamp time.Time
	Err       error // Wrapped error
}

// Error implements the error interface
func (e *BaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping
func (e *BaseError) Unwrap() error {
	return e.Err
}

// ErrorType returns the category of the error
func (e *BaseError) ErrorType() ErrorType {
	return e.Type
}

// Text returns the human-readable message without the type prefix.
func (e *BaseError) Text() string {
	return e.Message
}

// Key names the entity or field the error is about. The boundary uses it
// to key the message in response bodies.
func (e *BaseError) Key() string {
	return string(e.Type)
}

// NewBaseError creates a new base error
func NewBaseError(errType ErrorType, message string, err error) *BaseError {
	return &BaseError{
		Type:      errType,
		Message:   message,
		Timestamp: time.Now(),
		Err:       err,
	}
}

// Domain Errors

// ErrNotFound is returned when a referenced entity does not exist
type ErrNotFound struct {
	*BaseError
	Kind string
	ID   string
}

func NewNotFound(kind, id string) *ErrNotFound {
	return &ErrNotFound{
		BaseError: NewBaseError(ErrorTypeNotFound, fmt.Sprintf("%s with ID %s does not exist", kind, id), nil),
		Kind:      kind,
		ID:        id,
	}
}

func (e *ErrNotFound) Key() string {
	return e.Kind + "NotFound"
}

// ErrValidation is returned when a text field is empty or too long
type ErrValidation struct {
	*BaseError
	Field   string
	Reason  string
	TooLong bool
}

func NewValidation(field, reason string) *ErrValidation {
	return &ErrValidation{
		BaseError: NewBaseError(ErrorTypeValidation, fmt.Sprintf("%s %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

func NewTooLong(field string, limit int) *ErrValidation {
	e := NewValidation(field, fmt.Sprintf("must be no more than %d characters.", limit))
	e.TooLong = true
	return e
}

func (e *ErrValidation) Key() string {
	return e.Field
}

// ErrNotAuthorized is returned when the actor may not perform an operation
type ErrNotAuthorized struct {
	*BaseError
	Actor  string
	Target string
	Reason string
}

func NewNotAuthorized(actor, target, reason string) *ErrNotAuthorized {
	return &ErrNotAuthorized{
		BaseError: NewBaseError(ErrorTypeNotAuthorized, reason, nil),
		Actor:     actor,
		Target:    target,
		Reason:    reason,
	}
}

func (e *ErrNotAuthorized) Key() string {
	return e.Target
}

// ErrDuplicate is returned when a uniqueness invariant would be violated
type ErrDuplicate struct {
	*BaseError
	Kind   string
	Unique string
}

func NewDuplicate(kind, unique, message string) *ErrDuplicate {
	return &ErrDuplicate{
		BaseError: NewBaseError(ErrorTypeDuplicate, message, nil),
		Kind:      kind,
		Unique:    unique,
	}
}

func (e *ErrDuplicate) Key() string {
	return e.Kind
}

// Store Errors

// ErrStoreFailed is returned when the backing store could not complete an operation
type ErrStoreFailed struct {
	*BaseError
	Operation string
	Retryable bool
}

func NewStoreFailed(operation string, err error) *ErrStoreFailed {
	return &ErrStoreFailed{
		BaseError: NewBaseError(ErrorTypeStore, fmt.Sprintf("store operation failed: %s", operation), err),
		Operation: operation,
		Retryable: stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled),
	}
}

func (e *ErrStoreFailed) Key() string {
	return "store"
}

// Config Errors

// ErrConfigValidationFailed is returned when configuration validation fails
type ErrConfigValidationFailed struct {
	*BaseError
	Field  string
	Reason string
}

func NewConfigValidationFailed(field, reason string) *ErrConfigValidationFailed {
	return &ErrConfigValidationFailed{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("config validation failed: %s - %s", field, reason), nil),
		Field:     field,
		Reason:    reason,
	}
}

// ErrConfigMissingRequired is returned when a required config value is missing
type ErrConfigMissingRequired struct {
	*BaseError
	Field string
}

func NewConfigMissingRequired(field string) *ErrConfigMissingRequired {
	return &ErrConfigMissingRequired{
		BaseError: NewBaseError(ErrorTypeConfig, fmt.Sprintf("missing required config: %s", field), nil),
		Field:     field,
	}
}

// Helper functions

type typed interface {
	error
	ErrorType() ErrorType
	Key() string
	Text() string
}

// TypeOf returns the category of the first typed error in err's chain.
func TypeOf(err error) (ErrorType, bool) {
	var t typed
	if stderrors.As(err, &t) {
		return t.ErrorType(), true
	}
	return "", false
}

// KeyOf returns the entity or field name the error is about.
func KeyOf(err error) string {
	var t typed
	if stderrors.As(err, &t) {
		return t.Key()
	}
	return "error"
}

// MessageOf returns the message shown to callers. Untyped errors get a
// generic message so internals never leak.
func MessageOf(err error) string {
	var t typed
	if stderrors.As(err, &t) {
		return t.Text()
	}
	return "An unexpected error occurred."
}

// IsErrorType checks if an error is of a specific type
func IsErrorType(err error, errType ErrorType) bool {
	t, ok := TypeOf(err)
	return ok && t == errType
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var storeErr *ErrStoreFailed
	if stderrors.As(err, &storeErr) {
		return storeErr.Retryable
	}
	return false
}

// Classify wraps err as a store failure unless it already carries a type.
func Classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := TypeOf(err); ok {
		return err
	}
	return NewStoreFailed(operation, err)
}
