package device

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/datalogger/pkg/dump"
	"github.com/robotalks/datalogger/pkg/link"
	"github.com/robotalks/datalogger/pkg/protocol"
	"github.com/robotalks/datalogger/pkg/sim/firmware"
)

func testOptions() Options {
	return Options{
		LineTimeout:  200 * time.Millisecond,
		StateTimeout: 200 * time.Millisecond,
		NoSettle:     true,
	}
}

func connect(t *testing.T, f *firmware.Firmware, opts Options) *Device {
	d, err := New(context.Background(), link.NewConn("sim", f.Open()), opts)
	require.NoError(t, err)
	t.Cleanup(func() { d.Disconnect() })
	return d
}

func waitResult(t *testing.T, f *Future) dump.Result {
	select {
	case res := <-f.ResultChan():
		return res
	case <-time.After(5 * time.Second):
		t.Fatal("dump result timeout")
	}
	return dump.Result{}
}

func TestConnectSeedsState(t *testing.T) {
	f := firmware.New(0)
	f.States = protocol.StateVector{true, false, true, false}
	var notified []protocol.StateVector
	opts := testOptions()
	opts.StateNotifier = StateChangedFunc(func(ctx context.Context, states protocol.StateVector) {
		notified = append(notified, states)
	})
	d := connect(t, f, opts)
	require.NoError(t, d.StateErr())
	require.Equal(t, protocol.StateVector{true, false, true, false}, d.CurrentState())
	require.Equal(t, []protocol.StateVector{{true, false, true, false}}, notified)
	require.Equal(t, "sim", d.Endpoint())
}

func TestConnectSilentDevice(t *testing.T) {
	f := firmware.New(1)
	f.Silent = true
	d := connect(t, f, testOptions())
	require.True(t, errors.Is(d.StateErr(), link.ErrTimeout))
	require.Equal(t, protocol.StateVector{}, d.CurrentState())
	require.NoError(t, d.Err())
}

func TestConnectUnknownEndpoint(t *testing.T) {
	_, err := Connect(context.Background(), "nope://x", testOptions())
	require.Equal(t, CategoryConnection, Classify(err))
}

func TestConnectViaDialer(t *testing.T) {
	d, err := Connect(context.Background(), "sim://device-test?records=4", testOptions())
	require.NoError(t, err)
	defer d.Disconnect()
	future, err := d.StartDumpRead(context.Background())
	require.NoError(t, err)
	res := waitResult(t, future)
	require.Equal(t, dump.Success, res.Kind)
	require.Len(t, res.Records(), 4)
}

func TestDumpRead(t *testing.T) {
	f := firmware.New(5)
	f.Garbage = []string{"checksum mismatch"}
	var handled []dump.Result
	var lock sync.Mutex
	opts := testOptions()
	opts.ResultHandler = HandleResultFunc(func(ctx context.Context, res dump.Result) {
		lock.Lock()
		handled = append(handled, res)
		lock.Unlock()
	})
	d := connect(t, f, opts)

	future, err := d.StartDumpRead(context.Background())
	require.NoError(t, err)
	res := waitResult(t, future)
	require.Equal(t, dump.Success, res.Kind)
	require.Equal(t, f.Records, res.Records())
	require.Len(t, res.Anomalies(), 1)
	require.Equal(t, CategoryMalformed, ClassifyResult(res))

	<-future.Done()
	stored, ok := future.Result()
	require.True(t, ok)
	require.Equal(t, res, stored)
	lock.Lock()
	require.Len(t, handled, 1)
	lock.Unlock()
}

func TestDumpReadEmpty(t *testing.T) {
	d := connect(t, firmware.New(0), testOptions())
	future, err := d.StartDumpRead(context.Background())
	require.NoError(t, err)
	res, err := future.Wait(context.Background())
	require.NoError(t, err)
	require.Equal(t, dump.Empty, res.Kind)
	require.Equal(t, CategoryNoData, ClassifyResult(res))
}

func TestDumpReadNoResponse(t *testing.T) {
	f := firmware.New(3)
	f.Silent = true
	d := connect(t, f, testOptions())
	future, err := d.StartDumpRead(context.Background())
	require.NoError(t, err)
	res := waitResult(t, future)
	require.Equal(t, dump.Failed, res.Kind)
	require.Equal(t, dump.FailNoResponse, dump.FailureOf(res).Kind)
	require.Equal(t, CategoryTimeout, ClassifyResult(res))
	require.NoError(t, d.Err())
}

func TestConcurrentDumpRejected(t *testing.T) {
	f := firmware.New(5)
	f.LineDelay = 20 * time.Millisecond
	d := connect(t, f, testOptions())

	future, err := d.StartDumpRead(context.Background())
	require.NoError(t, err)
	_, err = d.StartDumpRead(context.Background())
	require.Equal(t, ErrBusy, err)
	require.Equal(t, ErrBusy, d.Toggle(context.Background(), 1))
	require.Equal(t, ErrBusy, d.RefreshState(context.Background()))
	require.Equal(t, CategoryUsage, Classify(ErrBusy))

	res := waitResult(t, future)
	require.Equal(t, dump.Success, res.Kind)
	require.Len(t, res.Records(), 5)

	future, err = d.StartDumpRead(context.Background())
	require.NoError(t, err)
	require.Equal(t, dump.Success, waitResult(t, future).Kind)
}

func TestToggle(t *testing.T) {
	f := firmware.New(0)
	d := connect(t, f, testOptions())
	require.NoError(t, d.Toggle(context.Background(), 2))
	require.NoError(t, d.Toggle(context.Background(), 4))
	require.Equal(t, protocol.StateVector{false, true, false, true}, d.CurrentState())
	require.NoError(t, d.RefreshState(context.Background()))
	require.Equal(t, f.SensorStates(), d.CurrentState())

	err := d.Toggle(context.Background(), 5)
	require.True(t, errors.Is(err, protocol.ErrInvalidSensor))
	require.Equal(t, CategoryUsage, Classify(err))
}

func TestUnsolicitedLinesDrained(t *testing.T) {
	f := firmware.New(2)
	f.AckToggles = true
	d := connect(t, f, testOptions())
	require.NoError(t, d.Toggle(context.Background(), 1))
	time.Sleep(50 * time.Millisecond)

	future, err := d.StartDumpRead(context.Background())
	require.NoError(t, err)
	res := waitResult(t, future)
	require.Equal(t, dump.Success, res.Kind)
	require.Empty(t, res.Anomalies())
	require.Len(t, res.Records(), 2)
}

func TestDisconnectDuringDump(t *testing.T) {
	f := firmware.New(50)
	f.LineDelay = 20 * time.Millisecond
	d := connect(t, f, testOptions())
	future, err := d.StartDumpRead(context.Background())
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	require.NoError(t, d.Disconnect())

	res := waitResult(t, future)
	require.Equal(t, dump.Failed, res.Kind)
	require.Equal(t, dump.FailTransport, dump.FailureOf(res).Kind)
	require.True(t, errors.Is(res.Err, link.ErrClosed))
	require.Equal(t, CategoryConnection, ClassifyResult(res))

	_, err = d.StartDumpRead(context.Background())
	require.True(t, errors.Is(err, ErrNotConnected))
	require.True(t, errors.Is(d.Toggle(context.Background(), 1), ErrNotConnected))
}

func TestConnectionLost(t *testing.T) {
	f := firmware.New(50)
	f.LineDelay = 20 * time.Millisecond
	d := connect(t, f, testOptions())
	future, err := d.StartDumpRead(context.Background())
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	f.Unplug()

	res := waitResult(t, future)
	require.Equal(t, dump.FailTransport, dump.FailureOf(res).Kind)
	require.Error(t, d.Err())
	_, err = d.StartDumpRead(context.Background())
	require.True(t, errors.Is(err, ErrNotConnected))
}

func TestDumpDeadline(t *testing.T) {
	f := firmware.New(20)
	f.LineDelay = 10 * time.Millisecond
	d := connect(t, f, testOptions())
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	future, err := d.StartDumpRead(ctx)
	require.NoError(t, err)
	res := waitResult(t, future)
	require.Equal(t, dump.FailCanceled, dump.FailureOf(res).Kind)
	require.Equal(t, CategoryTimeout, ClassifyResult(res))

	// the aborted dump is discarded before the gate is released.
	future, err = d.StartDumpRead(context.Background())
	require.NoError(t, err)
	res = waitResult(t, future)
	require.Equal(t, dump.Success, res.Kind)
	require.Len(t, res.Records(), 20)
	require.Empty(t, res.Anomalies())
}
