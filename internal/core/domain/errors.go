package domain

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can branch on it instead of on message text.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindConflict
	KindAuth
	KindNotFound
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindAuth:
		return "auth"
	case KindNotFound:
		return "not_found"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error is the tagged failure returned by services and repositories.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil && e.Message != "" {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// works regardless of the message carried.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

// Sentinels for errors.Is checks. They carry no message on purpose: Is
// compares only the kind against them.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrConflict   = &Error{Kind: KindConflict}
	ErrAuth       = &Error{Kind: KindAuth}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrStore      = &Error{Kind: KindStore}
)

func Validation(msg string) error { return &Error{Kind: KindValidation, Message: msg} }

func Conflict(msg string) error { return &Error{Kind: KindConflict, Message: msg} }

func Unauthorized(msg string) error { return &Error{Kind: KindAuth, Message: msg} }

func NotFound(msg string) error { return &Error{Kind: KindNotFound, Message: msg} }

// StoreFailure wraps a persistence fault. The message is safe to log but is
// never rendered to clients.
func StoreFailure(op string, err error) error {
	return &Error{Kind: KindStore, Message: op, Err: err}
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the client-safe message of a tagged error, falling back
// to the kind name.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return KindOf(err).String()
}
