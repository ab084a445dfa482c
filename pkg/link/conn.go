package link

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
)

// Conn is an open line-oriented connection to the device.
type Conn struct {
	Endpoint string
	BaudRate int

	rwc       io.ReadWriteCloser
	lineCh    chan string
	readDone  chan struct{}
	readErr   error
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error
	writeLock sync.Mutex
}

// NewConn wraps an already opened stream and starts assembling lines.
func NewConn(endpoint string, rwc io.ReadWriteCloser) *Conn {
	c := &Conn{
		Endpoint: endpoint,
		rwc:      rwc,
		lineCh:   make(chan string),
		readDone: make(chan struct{}),
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// IsClosed indicates Close has been called.
func (c *Conn) IsClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

// WriteByte sends a single byte.
func (c *Conn) WriteByte(b byte) error {
	if c.IsClosed() {
		return &TransportError{Op: "write", Err: ErrClosed}
	}
	c.writeLock.Lock()
	defer c.writeLock.Unlock()
	glog.V(2).Infof("%s TX %q", c.Endpoint, b)
	if _, err := c.rwc.Write([]byte{b}); err != nil {
		if c.IsClosed() {
			err = ErrClosed
		}
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// ReadLine waits for the next complete line, without the line terminator.
// A timeout <= 0 waits until ctx is done.
func (c *Conn) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	if c.IsClosed() {
		return "", &TransportError{Op: "read", Err: ErrClosed}
	}
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case line := <-c.lineCh:
		return line, nil
	case <-c.readDone:
		if c.IsClosed() {
			return "", &TransportError{Op: "read", Err: ErrClosed}
		}
		return "", &TransportError{Op: "read", Err: c.readErr}
	case <-c.closed:
		return "", &TransportError{Op: "read", Err: ErrClosed}
	case <-timer:
		return "", ErrTimeout
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Drain discards lines which have already been received but not consumed.
func (c *Conn) Drain() (lines []string) {
	for {
		select {
		case line := <-c.lineCh:
			lines = append(lines, line)
		default:
			return
		}
	}
}

// Close closes the underlying stream. It's safe to call multiple times.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.closeErr = c.rwc.Close()
		glog.Infof("%s closed", c.Endpoint)
	})
	return c.closeErr
}

func (c *Conn) readLoop() {
	defer close(c.readDone)
	r := bufio.NewReader(c.rwc)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			c.readErr = err
			return
		}
		line = strings.TrimRight(line, "\r\n")
		glog.V(2).Infof("%s RX %q", c.Endpoint, line)
		select {
		case c.lineCh <- line:
		case <-c.closed:
			return
		}
	}
}
