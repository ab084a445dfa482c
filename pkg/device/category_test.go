package device

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/datalogger/pkg/dump"
	"github.com/robotalks/datalogger/pkg/link"
	"github.com/robotalks/datalogger/pkg/protocol"
	"github.com/robotalks/datalogger/pkg/sensors"
)

func TestClassify(t *testing.T) {
	testCases := []struct {
		err      error
		category Category
	}{
		{err: nil, category: CategoryNone},
		{err: &link.ConnectError{Endpoint: "COM5", Reason: link.ReasonNotFound, Err: errors.New("no such file")}, category: CategoryConnection},
		{err: &link.TransportError{Op: "read", Err: errors.New("EOF")}, category: CategoryConnection},
		{err: fmt.Errorf("%w: lost", ErrNotConnected), category: CategoryConnection},
		{err: link.ErrTimeout, category: CategoryTimeout},
		{err: &dump.Failure{Kind: dump.FailNoResponse, Err: dump.ErrNoResponse}, category: CategoryTimeout},
		{err: &sensors.ProtocolError{Command: protocol.QueryState, Err: &protocol.DecodeError{Line: "1 0"}}, category: CategoryMalformed},
		{err: ErrBusy, category: CategoryUsage},
		{err: context.Canceled, category: CategoryUsage},
	}
	for _, tc := range testCases {
		require.Equal(t, tc.category, Classify(tc.err), "%v", tc.err)
	}
}

func TestClassifyResult(t *testing.T) {
	require.Equal(t, CategoryNoData, ClassifyResult(dump.Result{Kind: dump.Success}))
	require.Equal(t, CategoryNoData, ClassifyResult(dump.Result{Kind: dump.Empty}))
	require.Equal(t, CategoryNone, ClassifyResult(dump.Result{
		Kind:    dump.Success,
		Entries: []dump.Entry{{Record: protocol.Record{Address: "0", Value: "1"}}},
	}))
	require.Equal(t, "no data", CategoryNoData.String())
	require.Equal(t, "connection failure", CategoryConnection.String())
}
