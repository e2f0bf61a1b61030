// Package errors provides error wrapping utilities for context-aware error messages
// and the error taxonomy used across the remediation workflow.
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

// Kind classifies a workflow failure. Each kind maps to exactly one response class.
type Kind int

const (
	KindUnknown Kind = iota
	KindAuthorization
	KindSignalValidation
	KindNotFound
	KindUnsupportedState
	KindRemoteCall
)

func (k Kind) String() string {
	switch k {
	case KindAuthorization:
		return "authorization"
	case KindSignalValidation:
		return "signal_validation"
	case KindNotFound:
		return "not_found"
	case KindUnsupportedState:
		return "unsupported_state"
	case KindRemoteCall:
		return "remote_call"
	default:
		return "unknown"
	}
}

// Error is a classified workflow error. Instance is set once the locator has
// resolved a target, so later failures still name what they were acting on.
type Error struct {
	Kind     Kind
	Op       string
	Instance string
	Err      error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Instance != "" {
		msg += " (instance " + e.Instance + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New returns a classified error.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Newf returns a classified error with a formatted cause.
func Newf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// WithInstance attaches the resolved instance name to a classified error.
// Unclassified errors are promoted to KindRemoteCall.
func WithInstance(err error, instance string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if stderrors.As(err, &e) {
		cp := *e
		cp.Instance = instance
		return &cp
	}
	return &Error{Kind: KindRemoteCall, Instance: instance, Err: err}
}

// KindOf returns the kind of the first classified error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// InstanceOf returns the instance name attached to err, if any.
func InstanceOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Instance
	}
	return ""
}
