// Package faults classifies the errors that cross component boundaries.
package faults

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrCatalogFetch means the upstream bundle could not be fetched or parsed.
	ErrCatalogFetch = errors.New("catalog fetch failed")

	// ErrSignatureRefresh means no valid signature could be obtained.
	ErrSignatureRefresh = errors.New("signature refresh failed")

	// ErrUpstreamAuth means the token pool or the signing endpoint failed.
	ErrUpstreamAuth = errors.New("upstream auth failed")

	// ErrRedirectResolution means the redirect probe failed. Never surfaced.
	ErrRedirectResolution = errors.New("redirect resolution failed")

	// ErrStreamTransport means the upstream stream connection failed.
	ErrStreamTransport = errors.New("stream transport failed")
)

// Error wraps a lower level error with its kind and the operation that failed.
type Error struct {
	Kind error
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// New classifies err as kind. A nil err still yields an error carrying the kind.
func New(kind error, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf classifies a formatted message as kind.
func Errorf(kind error, op string, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Is reports whether err is classified as kind.
func Is(err, kind error) bool {
	return errors.Is(err, kind)
}
