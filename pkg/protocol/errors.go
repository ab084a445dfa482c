package protocol

import (
	"errors"
	"fmt"
)

// ErrInvalidSensor indicates a sensor index outside 1..NumSensors.
var ErrInvalidSensor = errors.New("invalid sensor index")

// DecodeError describes a line which doesn't match the expected shape.
type DecodeError struct {
	Line   string
	Reason string
}

// Error implements error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("malformed line %q: %s", e.Line, e.Reason)
}
