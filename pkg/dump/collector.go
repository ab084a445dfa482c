// Package dump drives the EEPROM dump exchange.
package dump

import (
	"context"
	"errors"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/datalogger/pkg/link"
	"github.com/robotalks/datalogger/pkg/protocol"
)

// LineReadWriter is the part of link.Conn used by the collector.
type LineReadWriter interface {
	WriteByte(byte) error
	ReadLine(ctx context.Context, timeout time.Duration) (string, error)
}

// State is the state of a Collector.
type State int

// Collector states.
const (
	StateIdle State = iota
	StateRequested
	StateCollecting
	StateCompleted
	StateEmptyReported
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequested:
		return "requested"
	case StateCollecting:
		return "collecting"
	case StateCompleted:
		return "completed"
	case StateEmptyReported:
		return "empty-reported"
	}
	return "failed"
}

// IsTerminal indicates the collector has finished.
func (s State) IsTerminal() bool {
	return s >= StateCompleted
}

// DefaultLineTimeout bounds the wait for each dump line.
const DefaultLineTimeout = 2 * time.Second

// Options configures a Collector.
type Options struct {
	// LineTimeout bounds the wait for each line.
	LineTimeout time.Duration
	// SettleDelay is waited after the request before reading.
	SettleDelay time.Duration
	// OnEntry is called for every decoded line, in order.
	OnEntry func(Entry)
}

// DefaultOptions returns options matching the firmware timing.
func DefaultOptions() Options {
	return Options{
		LineTimeout: DefaultLineTimeout,
		SettleDelay: protocol.ReadDump.SettleDelay(),
	}
}

// Collector runs a single dump. A new one is needed for every dump.
type Collector struct {
	rw      LineReadWriter
	opts    Options
	state   State
	entries []Entry
	lines   int
}

// NewCollector creates a Collector.
func NewCollector(rw LineReadWriter, opts Options) *Collector {
	return &Collector{rw: rw, opts: opts}
}

// State gets the current state.
func (c *Collector) State() State {
	return c.state
}

// Collect requests the dump and reads until a terminal state.
func (c *Collector) Collect(ctx context.Context) Result {
	if c.state != StateIdle {
		return Result{Kind: Failed, Err: &Failure{Kind: FailUsage, Err: ErrReused}}
	}
	if err := c.rw.WriteByte(protocol.ReadDump.Byte()); err != nil {
		return c.fail(FailTransport, err)
	}
	c.state = StateRequested
	if err := link.Settle(ctx, c.opts.SettleDelay); err != nil {
		return c.fail(FailCanceled, err)
	}
	c.state = StateCollecting
	for {
		line, err := c.rw.ReadLine(ctx, c.opts.LineTimeout)
		if err != nil {
			return c.readFailed(err)
		}
		c.lines++
		res := protocol.DecodeDumpLine(line)
		switch res.Kind {
		case protocol.KindEnd:
			c.state = StateCompleted
			return Result{Kind: Success, Entries: c.entries}
		case protocol.KindNoData:
			c.state, c.entries = StateEmptyReported, nil
			return Result{Kind: Empty}
		case protocol.KindRecord:
			c.add(Entry{Record: res.Record})
		default:
			glog.Warningf("dump line %d: %v", c.lines, res.Err())
			c.add(Entry{Anomaly: res.Err().(*protocol.DecodeError)})
		}
	}
}

func (c *Collector) add(entry Entry) {
	c.entries = append(c.entries, entry)
	if fn := c.opts.OnEntry; fn != nil {
		fn(entry)
	}
}

func (c *Collector) readFailed(err error) Result {
	switch {
	case errors.Is(err, link.ErrTimeout):
		if c.lines == 0 {
			return c.fail(FailNoResponse, ErrNoResponse)
		}
		return c.fail(FailTimeout, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return c.fail(FailCanceled, err)
	}
	return c.fail(FailTransport, err)
}

func (c *Collector) fail(kind FailureKind, err error) Result {
	c.state, c.entries = StateFailed, nil
	return Result{Kind: Failed, Err: &Failure{Kind: kind, Received: c.lines, Err: err}}
}
