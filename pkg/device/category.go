package device

import (
	"context"
	"errors"

	"github.com/robotalks/datalogger/pkg/dump"
	"github.com/robotalks/datalogger/pkg/link"
	"github.com/robotalks/datalogger/pkg/protocol"
)

// Category is the user facing class of an outcome.
type Category int

// Categories.
const (
	CategoryNone Category = iota
	CategoryConnection
	CategoryMalformed
	CategoryNoData
	CategoryTimeout
	CategoryUsage
)

func (c Category) String() string {
	switch c {
	case CategoryNone:
		return "ok"
	case CategoryConnection:
		return "connection failure"
	case CategoryMalformed:
		return "malformed data"
	case CategoryNoData:
		return "no data"
	case CategoryTimeout:
		return "timeout"
	}
	return "invalid request"
}

// Classify maps an error returned by this module to a Category.
func Classify(err error) Category {
	if err == nil {
		return CategoryNone
	}
	var (
		connectErr *link.ConnectError
		decodeErr  *protocol.DecodeError
	)
	switch {
	case errors.Is(err, ErrBusy),
		errors.Is(err, protocol.ErrInvalidSensor),
		errors.Is(err, dump.ErrReused),
		errors.Is(err, context.Canceled):
		return CategoryUsage
	case errors.As(err, &connectErr),
		errors.Is(err, ErrNotConnected),
		link.IsTransport(err):
		return CategoryConnection
	case errors.Is(err, link.ErrTimeout),
		errors.Is(err, dump.ErrNoResponse),
		errors.Is(err, context.DeadlineExceeded):
		return CategoryTimeout
	case errors.As(err, &decodeErr):
		return CategoryMalformed
	}
	return CategoryConnection
}

// ClassifyResult maps a dump result to a Category. Both an explicit empty
// report and END without records are CategoryNoData.
func ClassifyResult(res dump.Result) Category {
	switch {
	case res.Kind == dump.Failed:
		return Classify(res.Err)
	case res.IsNoData():
		return CategoryNoData
	case len(res.Anomalies()) > 0:
		return CategoryMalformed
	}
	return CategoryNone
}
