package sensors

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/datalogger/pkg/link"
	"github.com/robotalks/datalogger/pkg/protocol"
)

type fakeDevice struct {
	reply   string
	readErr error
	written []byte
}

func (d *fakeDevice) WriteByte(b byte) error {
	d.written = append(d.written, b)
	return nil
}

func (d *fakeDevice) ReadLine(ctx context.Context, timeout time.Duration) (string, error) {
	if d.readErr != nil {
		return "", d.readErr
	}
	return d.reply, nil
}

func TestQuerySeedsCache(t *testing.T) {
	c := &Cache{NoSettle: true}
	_, seeded := c.Current()
	require.False(t, seeded)

	dev := &fakeDevice{reply: "1 0 1 0"}
	states, err := c.Query(context.Background(), dev, time.Second)
	require.NoError(t, err)
	require.Equal(t, protocol.StateVector{true, false, true, false}, states)
	require.Equal(t, []byte{'S'}, dev.written)

	cached, seeded := c.Current()
	require.True(t, seeded)
	require.Equal(t, states, cached)
}

func TestQueryWrongArity(t *testing.T) {
	c := &Cache{NoSettle: true}
	_, err := c.Query(context.Background(), &fakeDevice{reply: "0 1 1 0"}, time.Second)
	require.NoError(t, err)

	_, err = c.Query(context.Background(), &fakeDevice{reply: "1 0 1"}, time.Second)
	var decodeErr *protocol.DecodeError
	require.True(t, errors.As(err, &decodeErr))
	require.Equal(t, "1 0 1", decodeErr.Line)
	var protoErr *ProtocolError
	require.True(t, errors.As(err, &protoErr))
	require.Equal(t, protocol.QueryState, protoErr.Command)

	cached, _ := c.Current()
	require.Equal(t, protocol.StateVector{false, true, true, false}, cached)
}

func TestQueryTimeout(t *testing.T) {
	c := &Cache{NoSettle: true}
	_, err := c.Query(context.Background(), &fakeDevice{readErr: link.ErrTimeout}, time.Second)
	require.True(t, errors.Is(err, link.ErrTimeout))
	require.IsType(t, &ProtocolError{}, err)
	_, seeded := c.Current()
	require.False(t, seeded)
}

func TestQueryTransportError(t *testing.T) {
	c := &Cache{NoSettle: true}
	cause := &link.TransportError{Op: "read", Err: link.ErrClosed}
	_, err := c.Query(context.Background(), &fakeDevice{readErr: cause}, time.Second)
	require.Equal(t, cause, err)
}

func TestToggle(t *testing.T) {
	c := &Cache{NoSettle: true}
	dev := &fakeDevice{reply: "0 0 0 0"}
	_, err := c.Query(context.Background(), dev, time.Second)
	require.NoError(t, err)

	states, err := c.Toggle(context.Background(), dev, 3)
	require.NoError(t, err)
	require.Equal(t, protocol.StateVector{false, false, true, false}, states)
	states, err = c.Toggle(context.Background(), dev, 3)
	require.NoError(t, err)
	require.Equal(t, protocol.StateVector{}, states)
	require.Equal(t, []byte{'S', '3', '3'}, dev.written)
}

func TestToggleInvalidIndex(t *testing.T) {
	c := &Cache{NoSettle: true}
	dev := &fakeDevice{}
	for _, n := range []int{0, 5, -2} {
		_, err := c.Toggle(context.Background(), dev, n)
		require.True(t, errors.Is(err, protocol.ErrInvalidSensor))
	}
	require.Empty(t, dev.written)
}

func TestToggleWaitsSettle(t *testing.T) {
	c := &Cache{}
	start := time.Now()
	_, err := c.Toggle(context.Background(), &fakeDevice{}, 1)
	require.NoError(t, err)
	require.True(t, time.Since(start) >= protocol.CommandSettleDelay)
}
