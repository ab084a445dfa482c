package protocol

import (
	"fmt"
	"time"
)

// NumSensors is the number of sensor flags on the device.
const NumSensors = 4

// Command is a single-byte host command.
type Command byte

// Commands understood by the firmware.
const (
	ReadDump   Command = 'R'
	QueryState Command = 'S'
)

// Settle delays expected by the firmware between a command and its response.
const (
	DumpSettleDelay    = 200 * time.Millisecond
	CommandSettleDelay = 100 * time.Millisecond
)

// ToggleSensor creates the command toggling sensor n (1-based).
func ToggleSensor(n int) (Command, error) {
	if n < 1 || n > NumSensors {
		return 0, fmt.Errorf("%w: %d", ErrInvalidSensor, n)
	}
	return Command('0' + n), nil
}

// Byte returns the encoded byte.
func (c Command) Byte() byte {
	return byte(c)
}

// Sensor returns the sensor index of a toggle command, or 0.
func (c Command) Sensor() int {
	if c >= '1' && c < Command('1'+NumSensors) {
		return int(c - '0')
	}
	return 0
}

// IsValid checks if the command is known to the firmware.
func (c Command) IsValid() bool {
	return c == ReadDump || c == QueryState || c.Sensor() != 0
}

// SettleDelay is how long the device needs before its response can be read.
func (c Command) SettleDelay() time.Duration {
	if c == ReadDump {
		return DumpSettleDelay
	}
	return CommandSettleDelay
}

func (c Command) String() string {
	switch {
	case c == ReadDump:
		return "read-dump"
	case c == QueryState:
		return "query-state"
	case c.Sensor() != 0:
		return fmt.Sprintf("toggle-sensor-%d", c.Sensor())
	}
	return fmt.Sprintf("command(%#02x)", byte(c))
}
