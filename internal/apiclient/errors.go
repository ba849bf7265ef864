package apiclient

import (
	"errors"
	"fmt"
)

// Kind classifies a client-side failure
type Kind string

const (
	// KindLocal is a precondition rejected before any request was sent
	KindLocal Kind = "local"
	// KindRemote is a non-2xx reply from the server
	KindRemote Kind = "remote"
	// KindTransport means no usable reply arrived
	KindTransport Kind = "transport"
	// KindMalformed is a 2xx reply whose payload could not be parsed
	KindMalformed Kind = "malformed"
	// KindTimeout is raised by the store watchdog, never by the client itself
	KindTimeout Kind = "timeout"
)

// Common errors
var (
	ErrUnauthenticated  = errors.New("not authenticated")
	ErrVersionNotFound  = errors.New("version not found")
	ErrVersionMismatch  = errors.New("version does not belong to snippet")
	ErrMalformedPayload = errors.New("malformed payload")
	ErrInvalidInput     = errors.New("invalid input")
)

// Error is returned by every client and gateway call that fails.
// Message is always safe to show to a user; Err keeps the underlying cause
// for logs.
type Error struct {
	Kind    Kind
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// LocalError builds a precondition failure
func LocalError(op, message string, cause error) *Error {
	return &Error{Kind: KindLocal, Op: op, Message: message, Err: cause}
}

// AsError extracts an *Error from err, wrapping anything else as a
// transport failure with the given fallback message.
func AsError(err error, op, fallback string) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Kind: KindTransport, Op: op, Message: fallback, Err: err}
}
