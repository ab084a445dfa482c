package link

import (
	"errors"
	"fmt"
)

var (
	// ErrTimeout indicates no complete line arrived in time.
	ErrTimeout = errors.New("timeout waiting for line")
	// ErrClosed indicates the connection has been closed.
	ErrClosed = errors.New("connection closed")
	// ErrUnknownScheme indicates no dialer is registered for the endpoint.
	ErrUnknownScheme = errors.New("unknown endpoint scheme")
)

// Reasons for ConnectError.
const (
	ReasonNotFound    = "not found"
	ReasonPermission  = "permission denied"
	ReasonBusy        = "busy"
	ReasonInvalid     = "invalid endpoint"
	ReasonUnavailable = "unavailable"
)

// ConnectError is returned when an endpoint can't be opened.
type ConnectError struct {
	Endpoint string
	Reason   string
	Err      error
}

// Error implements error.
func (e *ConnectError) Error() string {
	return fmt.Sprintf("open %s: %s: %v", e.Endpoint, e.Reason, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectError) Unwrap() error {
	return e.Err
}

// TransportError wraps I/O failures on an open connection.
type TransportError struct {
	Op  string
	Err error
}

// Error implements error.
func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsTransport indicates err is fatal to the connection.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te) || errors.Is(err, ErrClosed)
}
