package device

import (
	"context"

	"github.com/robotalks/datalogger/pkg/dump"
	"github.com/robotalks/datalogger/pkg/protocol"
)

// ResultHandler is called when a dump finishes.
type ResultHandler interface {
	HandleResult(context.Context, dump.Result)
}

// HandleResultFunc is func type of ResultHandler.
type HandleResultFunc func(context.Context, dump.Result)

// HandleResult implements ResultHandler.
func (f HandleResultFunc) HandleResult(ctx context.Context, res dump.Result) {
	f(ctx, res)
}

// StateNotifier is called when the cached sensor flags change.
type StateNotifier interface {
	StateChanged(context.Context, protocol.StateVector)
}

// StateChangedFunc is func type of StateNotifier.
type StateChangedFunc func(context.Context, protocol.StateVector)

// StateChanged implements StateNotifier.
func (f StateChangedFunc) StateChanged(ctx context.Context, states protocol.StateVector) {
	f(ctx, states)
}
