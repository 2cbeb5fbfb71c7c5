// Package monerr is the error taxonomy of selfmon.
package monerr

import (
	"errors"
	"fmt"
)

var (
	// ErrProbe means the target could not be reached: DNS, connect, TLS, or timeout.
	// It is recorded as a down check and never fatal.
	ErrProbe = errors.New("probe error")

	// ErrStorage means a persisted collection could not be read or written.
	ErrStorage = errors.New("storage error")

	// ErrConfig means the configuration is missing or invalid.
	// It is fatal at startup only.
	ErrConfig = errors.New("configuration error")
)

// Error is the error type of selfmon.
//
// Please use errors.Is or errors.Unwrap if you want to know what kind of error is it.
type Error struct {
	kind    error
	from    error
	message string
}

// New creates a new Error.
func New(kind error, from error, format string, args ...interface{}) Error {
	msg := fmt.Sprintf(format, args...)
	if from != nil {
		if msg != "" {
			msg += ": "
		}
		msg += from.Error()
	}

	return Error{
		kind:    kind,
		from:    from,
		message: msg,
	}
}

// Error implements error interface.
func (e Error) Error() string {
	return e.message
}

// Unwrap implement for errors.Unwrap.
func (e Error) Unwrap() error {
	return e.from
}

// Is implement for errors.Is.
func (e Error) Is(err error) bool {
	return e.kind == err
}

// Kind returns the kind of error, like ErrProbe.
func (e Error) Kind() error {
	return e.kind
}
