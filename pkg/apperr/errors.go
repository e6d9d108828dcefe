// Package apperr defines the error kinds shared by the FreshBooks report
// packages. Every failure that aborts a run carries exactly one kind, which
// callers test with errors.Is.
package apperr

import (
	"errors"
	"fmt"
)

// Error kinds.
var (
	// ErrIO is returned when the credential token cannot be read or written.
	ErrIO = errors.New("io error")

	// ErrFormat is returned for malformed token JSON, item payloads or dates.
	ErrFormat = errors.New("format error")

	// ErrProtocol is returned when a page envelope violates the pagination contract.
	ErrProtocol = errors.New("protocol error")

	// ErrAuth is returned when the token refresh is rejected or a refreshed
	// token is still refused.
	ErrAuth = errors.New("auth error")
)

// Error attaches a kind and the failing operation to an underlying cause.
type Error struct {
	Kind error
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Kind)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

// New builds an *Error of the given kind.
func New(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error of the given kind with a formatted cause.
func Errorf(kind error, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind carried by err, or nil when err has none. When a
// chain carries several kinds, auth wins over protocol, format and io.
func KindOf(err error) error {
	for _, kind := range []error{ErrAuth, ErrProtocol, ErrFormat, ErrIO} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
