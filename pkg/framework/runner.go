package framework

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/golang/glog"
)

// ErrForcedExit is returned by Wait when a second stop signal arrives.
var ErrForcedExit = errors.New("forced exit")

// Runner starts Runnables in goroutines and collects their errors.
// The first Runnable to return cancels the others.
type Runner struct {
	ctx    context.Context
	cancel context.CancelFunc
	count  int
	errCh  chan error
	exitCh chan struct{}
}

// NewRunner creates a Runner derived from ctx.
func NewRunner(ctx context.Context) *Runner {
	ctx, cancel := context.WithCancel(ctx)
	return &Runner{
		ctx:    ctx,
		cancel: cancel,
		errCh:  make(chan error),
		exitCh: make(chan struct{}),
	}
}

// Context is canceled on stop request or when any Runnable returns.
func (r *Runner) Context() context.Context {
	return r.ctx
}

// HandleSignals cancels on Ctrl-C or SIGTERM. A second signal
// makes Wait return without waiting.
func (r *Runner) HandleSignals() *Runner {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		glog.Info("stop requested")
		r.cancel()
		<-sigCh
		glog.Error("stop requested again, force exit")
		close(r.exitCh)
	}()
	return r
}

// Go starts runnables.
func (r *Runner) Go(runnables ...Runnable) *Runner {
	for _, runnable := range runnables {
		name := nameOf(runnable, r.count)
		r.count++
		go func(runnable Runnable, name string) {
			glog.V(4).Infof("runner %s started", name)
			err := runnable.Run(r.ctx)
			glog.V(4).Infof("runner %s stopped: %v", name, err)
			r.cancel()
			r.errCh <- err
		}(runnable, name)
	}
	return r
}

// Wait blocks until all runnables return. Cancellation is not reported
// as an error.
func (r *Runner) Wait() error {
	var errs MultiError
	for i := 0; i < r.count; i++ {
		select {
		case <-r.exitCh:
			return ErrForcedExit
		case err := <-r.errCh:
			if !errors.Is(err, context.Canceled) {
				errs.Add(err)
			}
		}
	}
	r.cancel()
	return errs.ErrorOrNil()
}

// RunWithCloser runs fn which doesn't accept a context. closer is closed
// when ctx is done to unblock fn, or after fn returns.
func RunWithCloser(ctx context.Context, closer io.Closer, fn func() error) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- fn()
	}()
	select {
	case <-ctx.Done():
		closer.Close()
		<-errCh
		return ctx.Err()
	case err := <-errCh:
		closer.Close()
		return err
	}
}
