// Package device provides the connection handle used by the presentation
// layer: it owns the link, serializes protocol operations and runs dumps
// in the background.
package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/robotalks/datalogger/pkg/dump"
	"github.com/robotalks/datalogger/pkg/link"
	"github.com/robotalks/datalogger/pkg/protocol"
	"github.com/robotalks/datalogger/pkg/sensors"
)

// DefaultStateTimeout bounds the wait for the state query reply.
const DefaultStateTimeout = time.Second

// Options configures a Device.
type Options struct {
	Link link.Options
	// LineTimeout bounds the wait for each dump line.
	LineTimeout time.Duration
	// StateTimeout bounds the wait for the state query reply.
	StateTimeout time.Duration
	// NoSettle skips the per-command settle delays. Only useful with
	// peers which don't need them, like the emulator.
	NoSettle bool

	ResultHandler ResultHandler
	StateNotifier StateNotifier
}

// DefaultOptions returns options matching the firmware timing.
func DefaultOptions() Options {
	return Options{
		Link:         link.DefaultOptions(),
		LineTimeout:  dump.DefaultLineTimeout,
		StateTimeout: DefaultStateTimeout,
	}
}

// Device is a connected data logger.
type Device struct {
	conn    *link.Conn
	opts    Options
	sensors sensors.Cache

	gate    sync.Mutex
	workers sync.WaitGroup

	lock     sync.Mutex
	lost     error
	stateErr error
}

// Connect opens the endpoint and queries the initial sensor state.
func Connect(ctx context.Context, endpoint string, opts Options) (*Device, error) {
	conn, err := link.Open(ctx, endpoint, opts.Link)
	if err != nil {
		return nil, err
	}
	return New(ctx, conn, opts)
}

// New creates a Device on an open connection and queries the initial
// sensor state. A malformed or missing state reply doesn't fail New, it's
// reported by StateErr.
func New(ctx context.Context, conn *link.Conn, opts Options) (*Device, error) {
	d := &Device{conn: conn, opts: opts}
	d.sensors.NoSettle = opts.NoSettle
	if err := d.RefreshState(ctx); err != nil {
		if link.IsTransport(err) || errors.Is(err, ErrNotConnected) {
			conn.Close()
			return nil, &link.ConnectError{Endpoint: conn.Endpoint, Reason: link.ReasonUnavailable, Err: err}
		}
		glog.Warningf("%s: initial state query failed: %v", conn.Endpoint, err)
	}
	return d, nil
}

// Endpoint returns the endpoint of the connection.
func (d *Device) Endpoint() string {
	return d.conn.Endpoint
}

// CurrentState returns the cached sensor flags.
func (d *Device) CurrentState() protocol.StateVector {
	states, _ := d.sensors.Current()
	return states
}

// StateErr returns the error of the last state query, nil if it succeeded.
func (d *Device) StateErr() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.stateErr
}

// Err returns the cause if the connection has been lost.
func (d *Device) Err() error {
	d.lock.Lock()
	defer d.lock.Unlock()
	return d.lost
}

// RefreshState queries the sensor flags and replaces the cache.
func (d *Device) RefreshState(ctx context.Context) error {
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.gate.Unlock()
	states, err := d.sensors.Query(ctx, d.conn, d.opts.StateTimeout)
	d.lock.Lock()
	d.stateErr = err
	d.lock.Unlock()
	if err != nil {
		d.checkLost(err)
		return err
	}
	d.notifyState(ctx, states)
	return nil
}

// Toggle toggles sensor n (1..4).
func (d *Device) Toggle(ctx context.Context, n int) error {
	if _, err := protocol.ToggleSensor(n); err != nil {
		return err
	}
	if err := d.acquire(); err != nil {
		return err
	}
	defer d.gate.Unlock()
	states, err := d.sensors.Toggle(ctx, d.conn, n)
	if err != nil {
		d.checkLost(err)
		return err
	}
	d.notifyState(ctx, states)
	return nil
}

// StartDumpRead starts reading the EEPROM dump in the background.
// ctx bounds the whole dump. Only one dump or other operation can be in
// progress, otherwise ErrBusy is returned.
func (d *Device) StartDumpRead(ctx context.Context) (*Future, error) {
	if err := d.acquire(); err != nil {
		return nil, err
	}
	f := newFuture()
	d.workers.Add(1)
	go d.runDump(ctx, f)
	return f, nil
}

// Disconnect closes the connection. A dump in progress fails with a
// transport error and Disconnect waits for it to finish.
func (d *Device) Disconnect() error {
	d.lock.Lock()
	if d.lost == nil {
		d.lost = ErrNotConnected
	}
	d.lock.Unlock()
	err := d.conn.Close()
	d.workers.Wait()
	return err
}

func (d *Device) runDump(ctx context.Context, future *Future) {
	defer d.workers.Done()
	opts := dump.Options{LineTimeout: d.opts.LineTimeout}
	if !d.opts.NoSettle {
		opts.SettleDelay = protocol.ReadDump.SettleDelay()
	}
	glog.V(1).Infof("%s: dump started", d.conn.Endpoint)
	res := dump.NewCollector(d.conn, opts).Collect(ctx)
	if res.Kind == dump.Failed {
		if f := dump.FailureOf(res); !d.checkLost(res.Err) && f != nil &&
			(f.Kind == dump.FailTimeout || f.Kind == dump.FailCanceled) {
			d.discardRemaining()
		}
		glog.Warningf("%s: %v", d.conn.Endpoint, res.Err)
	} else {
		glog.V(1).Infof("%s: dump %s, %d entries", d.conn.Endpoint, res.Kind, len(res.Entries))
	}
	d.gate.Unlock()
	if h := d.opts.ResultHandler; h != nil {
		h.HandleResult(context.Background(), res)
	}
	future.deliver(res)
}

// discardRemaining consumes the rest of an aborted dump so it doesn't
// leak into the next exchange.
func (d *Device) discardRemaining() {
	timeout := d.opts.LineTimeout
	if timeout <= 0 {
		timeout = dump.DefaultLineTimeout
	}
	for n := 0; ; n++ {
		line, err := d.conn.ReadLine(context.Background(), timeout)
		if err != nil {
			if n > 0 {
				glog.Warningf("%s: discarded %d lines of aborted dump", d.conn.Endpoint, n)
			}
			d.checkLost(err)
			return
		}
		if protocol.DecodeDumpLine(line).IsSentinel() {
			return
		}
	}
}

func (d *Device) acquire() error {
	if err := d.Err(); err != nil {
		return notConnected(err)
	}
	if !d.gate.TryLock() {
		return ErrBusy
	}
	if err := d.Err(); err != nil {
		d.gate.Unlock()
		return notConnected(err)
	}
	for _, line := range d.conn.Drain() {
		glog.Warningf("%s: unsolicited line %q", d.conn.Endpoint, line)
	}
	return nil
}

func (d *Device) checkLost(err error) bool {
	if !link.IsTransport(err) {
		return false
	}
	d.lock.Lock()
	if d.lost == nil {
		d.lost = err
		glog.Warningf("%s: connection lost: %v", d.conn.Endpoint, err)
	}
	d.lock.Unlock()
	d.conn.Close()
	return true
}

func (d *Device) notifyState(ctx context.Context, states protocol.StateVector) {
	if n := d.opts.StateNotifier; n != nil {
		n.StateChanged(ctx, states)
	}
}

func notConnected(cause error) error {
	if cause == ErrNotConnected {
		return ErrNotConnected
	}
	return fmt.Errorf("%w: %v", ErrNotConnected, cause)
}
