// Package sensors caches the sensor flags of the device.
package sensors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/datalogger/pkg/link"
	"github.com/robotalks/datalogger/pkg/protocol"
)

// LineReadWriter is the part of link.Conn used by the cache.
type LineReadWriter interface {
	WriteByte(byte) error
	ReadLine(ctx context.Context, timeout time.Duration) (string, error)
}

// ProtocolError indicates an exchange didn't follow the protocol.
type ProtocolError struct {
	Command protocol.Command
	Err     error
}

// Error implements error.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

// Unwrap returns the cause.
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Cache holds the last known sensor flags.
type Cache struct {
	// NoSettle skips the command settle delay.
	NoSettle bool

	states protocol.StateVector
	seeded bool
	lock   sync.RWMutex
}

// Current returns the cached flags and whether they were ever queried.
func (c *Cache) Current() (protocol.StateVector, bool) {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return c.states, c.seeded
}

// Query asks the device for its flags and replaces the cache.
// On failure the cache is left unchanged.
func (c *Cache) Query(ctx context.Context, rw LineReadWriter, timeout time.Duration) (protocol.StateVector, error) {
	cmd := protocol.QueryState
	if err := rw.WriteByte(cmd.Byte()); err != nil {
		return protocol.StateVector{}, err
	}
	if err := c.settle(ctx, cmd); err != nil {
		return protocol.StateVector{}, err
	}
	line, err := rw.ReadLine(ctx, timeout)
	if err != nil {
		if link.IsTransport(err) {
			return protocol.StateVector{}, err
		}
		return protocol.StateVector{}, &ProtocolError{Command: cmd, Err: err}
	}
	res := protocol.DecodeStateLine(line)
	if res.Kind != protocol.KindState {
		return protocol.StateVector{}, &ProtocolError{Command: cmd, Err: res.Err()}
	}
	c.lock.Lock()
	c.states, c.seeded = res.State, true
	c.lock.Unlock()
	glog.Infof("sensor states: %s", res.State)
	return res.State, nil
}

// Toggle flips sensor n (1-based) on the device. The device doesn't
// acknowledge, the cached flag is flipped once the command is sent.
func (c *Cache) Toggle(ctx context.Context, rw LineReadWriter, n int) (protocol.StateVector, error) {
	cmd, err := protocol.ToggleSensor(n)
	if err != nil {
		return protocol.StateVector{}, err
	}
	if err := rw.WriteByte(cmd.Byte()); err != nil {
		return protocol.StateVector{}, err
	}
	c.lock.Lock()
	c.states = c.states.Flip(n)
	states := c.states
	c.lock.Unlock()
	return states, c.settle(ctx, cmd)
}

func (c *Cache) settle(ctx context.Context, cmd protocol.Command) error {
	if c.NoSettle {
		return nil
	}
	return link.Settle(ctx, cmd.SettleDelay())
}
