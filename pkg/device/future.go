package device

import (
	"context"

	"github.com/robotalks/datalogger/pkg/dump"
)

// Future is the pending result of StartDumpRead.
type Future struct {
	resultCh chan dump.Result
	done     chan struct{}
	result   dump.Result
}

func newFuture() *Future {
	return &Future{
		resultCh: make(chan dump.Result, 1),
		done:     make(chan struct{}),
	}
}

// ResultChan returns the chan to retrieve the result. It delivers exactly
// one value.
func (f *Future) ResultChan() <-chan dump.Result {
	return f.resultCh
}

// Done is closed when the result is available.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Result returns the result once Done is closed.
func (f *Future) Result() (dump.Result, bool) {
	select {
	case <-f.done:
		return f.result, true
	default:
		return dump.Result{}, false
	}
}

// Wait waits for the result or until ctx is done. The dump itself keeps
// running when ctx ends first.
func (f *Future) Wait(ctx context.Context) (dump.Result, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return dump.Result{}, ctx.Err()
	}
}

func (f *Future) deliver(res dump.Result) {
	f.result = res
	close(f.done)
	f.resultCh <- res
}
