package link

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newPipeConn(t *testing.T) (*Conn, net.Conn) {
	host, device := net.Pipe()
	conn := NewConn("pipe", host)
	t.Cleanup(func() {
		conn.Close()
		device.Close()
	})
	return conn, device
}

func TestReadLine(t *testing.T) {
	conn, device := newPipeConn(t)
	go device.Write([]byte("Address 0: 1\r\nEND\n"))

	line, err := conn.ReadLine(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "Address 0: 1", line)
	line, err = conn.ReadLine(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "END", line)
}

func TestReadLineAssemblesFragments(t *testing.T) {
	conn, device := newPipeConn(t)
	go func() {
		for _, frag := range []string{"1 0", " 1", " 0", "\n"} {
			device.Write([]byte(frag))
			time.Sleep(5 * time.Millisecond)
		}
	}()
	line, err := conn.ReadLine(context.Background(), time.Second)
	require.NoError(t, err)
	require.Equal(t, "1 0 1 0", line)
}

func TestReadLineTimeout(t *testing.T) {
	conn, device := newPipeConn(t)
	go device.Write([]byte("partial"))

	start := time.Now()
	_, err := conn.ReadLine(context.Background(), 50*time.Millisecond)
	require.Equal(t, ErrTimeout, err)
	require.True(t, time.Since(start) >= 50*time.Millisecond)
	require.False(t, IsTransport(err))
}

func TestReadLineContext(t *testing.T) {
	conn, _ := newPipeConn(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := conn.ReadLine(ctx, time.Second)
	require.Equal(t, context.Canceled, err)
}

func TestCloseUnblocksReadLine(t *testing.T) {
	conn, _ := newPipeConn(t)
	errCh := make(chan error, 1)
	go func() {
		_, err := conn.ReadLine(context.Background(), 0)
		errCh <- err
	}()
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	select {
	case err := <-errCh:
		require.True(t, errors.Is(err, ErrClosed))
		require.True(t, IsTransport(err))
	case <-time.After(time.Second):
		t.Fatal("ReadLine not unblocked by Close")
	}
	require.True(t, errors.Is(conn.WriteByte('R'), ErrClosed))
}

func TestPeerDisconnect(t *testing.T) {
	conn, device := newPipeConn(t)
	device.Close()
	_, err := conn.ReadLine(context.Background(), time.Second)
	var te *TransportError
	require.True(t, errors.As(err, &te))
	require.Equal(t, "read", te.Op)
	require.True(t, errors.Is(err, io.ErrUnexpectedEOF))
}

func TestWriteByte(t *testing.T) {
	conn, device := newPipeConn(t)
	errCh := make(chan error, 1)
	go func() {
		errCh <- conn.WriteByte('S')
	}()
	buf := make([]byte, 1)
	_, err := io.ReadFull(device, buf)
	require.NoError(t, err)
	require.Equal(t, byte('S'), buf[0])
	require.NoError(t, <-errCh)
}

func TestDrain(t *testing.T) {
	conn, device := newPipeConn(t)
	go device.Write([]byte("OK 1\n"))
	time.Sleep(20 * time.Millisecond)
	require.Equal(t, []string{"OK 1"}, conn.Drain())
	require.Empty(t, conn.Drain())
}

func TestParseEndpoint(t *testing.T) {
	testCases := []struct {
		endpoint string
		scheme   string
		path     string
		host     string
	}{
		{endpoint: "/dev/ttyACM0", scheme: "serial", path: "/dev/ttyACM0"},
		{endpoint: "COM5", scheme: "serial", path: "COM5"},
		{endpoint: "serial://COM5", scheme: "serial", path: "COM5"},
		{endpoint: "serial:///dev/ttyUSB0", scheme: "serial", path: "/dev/ttyUSB0"},
		{endpoint: "tcp://10.0.0.2:4001", scheme: "tcp", host: "10.0.0.2:4001"},
		{endpoint: "ws://bridge.local/serial", scheme: "ws", host: "bridge.local", path: "/serial"},
	}
	for _, tc := range testCases {
		u, err := ParseEndpoint(tc.endpoint)
		require.NoError(t, err, tc.endpoint)
		require.Equal(t, tc.scheme, u.Scheme, tc.endpoint)
		require.Equal(t, tc.path, u.Path, tc.endpoint)
		require.Equal(t, tc.host, u.Host, tc.endpoint)
	}
	_, err := ParseEndpoint("")
	require.Error(t, err)
}

func TestOpenUnknownScheme(t *testing.T) {
	_, err := Open(context.Background(), "gopher://nowhere", Options{})
	var ce *ConnectError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, ReasonInvalid, ce.Reason)
	require.True(t, errors.Is(err, ErrUnknownScheme))
}

func TestOpenSettles(t *testing.T) {
	var device net.Conn
	RegisterDialer("test-pipe", func(ctx context.Context, u *url.URL, opts Options) (io.ReadWriteCloser, error) {
		require.Equal(t, DefaultBaudRate, opts.BaudRate)
		var host net.Conn
		host, device = net.Pipe()
		return host, nil
	})
	start := time.Now()
	conn, err := Open(context.Background(), "test-pipe://x", Options{OpenSettle: 50 * time.Millisecond})
	require.NoError(t, err)
	defer conn.Close()
	defer device.Close()
	require.True(t, time.Since(start) >= 50*time.Millisecond)
	require.Equal(t, DefaultBaudRate, conn.BaudRate)
	require.Equal(t, "test-pipe://x", conn.Endpoint)
}

func TestOpenDialFailure(t *testing.T) {
	RegisterDialer("test-fail", func(ctx context.Context, u *url.URL, opts Options) (io.ReadWriteCloser, error) {
		return nil, &ConnectError{Reason: ReasonBusy, Err: errors.New("in use")}
	})
	_, err := Open(context.Background(), "test-fail://x", Options{})
	var ce *ConnectError
	require.True(t, errors.As(err, &ce))
	require.Equal(t, ReasonBusy, ce.Reason)
	require.Equal(t, "test-fail://x", ce.Endpoint)
}
