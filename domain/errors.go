package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies a failed operation so callers can map it to a response
type ErrorKind string

const (
	KindNotFound          ErrorKind = "NOT_FOUND"
	KindInvalidReference  ErrorKind = "INVALID_REFERENCE"
	KindInvalidTransition ErrorKind = "INVALID_TRANSITION"
	KindContainerTerminal ErrorKind = "CONTAINER_TERMINAL"
	KindConflict          ErrorKind = "CONFLICT"
	KindValidation        ErrorKind = "VALIDATION_ERROR"
	KindTimeout           ErrorKind = "TIMEOUT"
	KindInternal          ErrorKind = "INTERNAL_ERROR"
)

// Error is the typed error returned by every command handler
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches errors of the same kind, so errors.Is(err, ErrNotFound) works
// for any NotFound error regardless of message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons
var (
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrInvalidReference  = &Error{Kind: KindInvalidReference}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition}
	ErrContainerTerminal = &Error{Kind: KindContainerTerminal}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrValidation        = &Error{Kind: KindValidation}
	ErrTimeout           = &Error{Kind: KindTimeout}
)

func NotFound(entity, id string) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf("%s %s not found", entity, id)}
}

func InvalidReference(entity, id string) *Error {
	return &Error{Kind: KindInvalidReference, Message: fmt.Sprintf("referenced %s %s does not exist", entity, id)}
}

func InvalidTransition(from, to string) *Error {
	return &Error{Kind: KindInvalidTransition, Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}

func ContainerTerminal(barcode string) *Error {
	return &Error{Kind: KindContainerTerminal, Message: fmt.Sprintf("container %s is disposed and accepts no further actions", barcode)}
}

func Conflict(format string, args ...interface{}) *Error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// Internal wraps an unexpected failure
func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// KindOf reports the kind of err. Deadline errors are reported as Timeout and
// anything untyped as Internal.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindInternal
}
