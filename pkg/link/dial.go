package link

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang/glog"
)

// DefaultBaudRate is the fixed rate of the firmware.
const DefaultBaudRate = 115200

// DefaultOpenSettle is how long the device needs to reset after the port opens.
const DefaultOpenSettle = 2 * time.Second

// Options configures Open.
type Options struct {
	BaudRate int
	// OpenSettle is the delay after the link is open before any traffic.
	OpenSettle time.Duration
}

// DefaultOptions returns the options matching the firmware.
func DefaultOptions() Options {
	return Options{BaudRate: DefaultBaudRate, OpenSettle: DefaultOpenSettle}
}

// Dialer opens the raw byte stream for a parsed endpoint.
type Dialer func(ctx context.Context, u *url.URL, opts Options) (io.ReadWriteCloser, error)

var (
	dialers     = make(map[string]Dialer)
	dialersLock sync.RWMutex
)

func init() {
	RegisterDialer("serial", dialSerial)
	RegisterDialer("tcp", dialTCP)
	RegisterDialer("ws", dialWebsocket)
	RegisterDialer("wss", dialWebsocket)
}

// RegisterDialer registers a dialer for an endpoint scheme.
func RegisterDialer(scheme string, dialer Dialer) {
	dialersLock.Lock()
	dialers[scheme] = dialer
	dialersLock.Unlock()
}

// ParseEndpoint parses an endpoint. A plain device path (e.g. /dev/ttyACM0,
// COM5) is treated as a serial endpoint.
func ParseEndpoint(endpoint string) (*url.URL, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("empty endpoint")
	}
	if !strings.Contains(endpoint, "://") {
		return &url.URL{Scheme: "serial", Path: endpoint}, nil
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, err
	}
	if u.Scheme == "serial" && u.Path == "" {
		// serial://COM5
		u.Path, u.Host = u.Host, ""
	}
	return u, nil
}

// Open opens the endpoint and waits the settle delay before returning.
func Open(ctx context.Context, endpoint string, opts Options) (*Conn, error) {
	u, err := ParseEndpoint(endpoint)
	if err != nil {
		return nil, &ConnectError{Endpoint: endpoint, Reason: ReasonInvalid, Err: err}
	}
	dialersLock.RLock()
	dialer := dialers[u.Scheme]
	dialersLock.RUnlock()
	if dialer == nil {
		return nil, &ConnectError{Endpoint: endpoint, Reason: ReasonInvalid, Err: fmt.Errorf("%w: %q", ErrUnknownScheme, u.Scheme)}
	}
	if opts.BaudRate == 0 {
		opts.BaudRate = DefaultBaudRate
	}
	rwc, err := dialer(ctx, u, opts)
	if err != nil {
		if ce, ok := err.(*ConnectError); ok {
			if ce.Endpoint == "" {
				ce.Endpoint = endpoint
			}
			return nil, ce
		}
		return nil, &ConnectError{Endpoint: endpoint, Reason: ReasonUnavailable, Err: err}
	}
	glog.Infof("%s opened at %d baud, settling %s", endpoint, opts.BaudRate, opts.OpenSettle)
	conn := NewConn(endpoint, rwc)
	conn.BaudRate = opts.BaudRate
	if err := sleep(ctx, opts.OpenSettle); err != nil {
		conn.Close()
		return nil, &ConnectError{Endpoint: endpoint, Reason: ReasonUnavailable, Err: err}
	}
	return conn, nil
}

// Settle waits d or until ctx is done.
func Settle(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func dialTCP(ctx context.Context, u *url.URL, opts Options) (io.ReadWriteCloser, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return nil, &ConnectError{Reason: ReasonUnavailable, Err: err}
	}
	return conn, nil
}
