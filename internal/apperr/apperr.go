// Package apperr defines the error kinds surfaced by the compliance engine.
//
// Every domain failure carries a Kind so the boundary layer can map it to a
// transport status without inspecting messages. Infrastructure failures are
// left unclassified and report KindUnknown.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindNotFound: a referenced ship, year, route, baseline or pool is absent.
	KindNotFound
	// KindInvalidArgument: a caller-supplied amount or pool composition violates a precondition.
	KindInvalidArgument
	// KindInvalidState: stored data violates a domain precondition.
	KindInvalidState
	// KindInvariant: a post-condition failed. Signals a bug, never a user error.
	KindInvariant
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindInvalidState:
		return "invalid_state"
	case KindInvariant:
		return "invariant"
	default:
		return "unknown"
	}
}

// Error is a classified domain error.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrInvalidArgument = &Error{Kind: KindInvalidArgument}
	ErrInvalidState    = &Error{Kind: KindInvalidState}
	ErrInvariant       = &Error{Kind: KindInvariant}
)

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is a sentinel of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Msg == "" && t.Op == "" && t.Err == nil && t.Kind == e.Kind
}

func newf(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NotFound builds a KindNotFound error.
func NotFound(op, format string, args ...interface{}) error {
	return newf(KindNotFound, op, format, args...)
}

// InvalidArgument builds a KindInvalidArgument error.
func InvalidArgument(op, format string, args ...interface{}) error {
	return newf(KindInvalidArgument, op, format, args...)
}

// InvalidState builds a KindInvalidState error.
func InvalidState(op, format string, args ...interface{}) error {
	return newf(KindInvalidState, op, format, args...)
}

// Invariant builds a KindInvariant error.
func Invariant(op, format string, args ...interface{}) error {
	return newf(KindInvariant, op, format, args...)
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Message returns the human-readable message of a classified error, or
// err.Error() for anything else.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return err.Error()
}
