package device

import (
	"errors"
)

var (
	// ErrBusy indicates another operation holds the connection.
	ErrBusy = errors.New("device busy")
	// ErrNotConnected indicates the device has been disconnected or lost.
	ErrNotConnected = errors.New("not connected")
)
