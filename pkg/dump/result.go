package dump

import (
	"errors"
	"fmt"

	"github.com/robotalks/datalogger/pkg/protocol"
)

// ResultKind tags the outcome of a dump.
type ResultKind int

// Outcomes of a dump.
const (
	// Success means END was received; records may be empty.
	Success ResultKind = iota
	// Empty means the device reported there is nothing to read.
	Empty
	// Failed means the dump was aborted, see Result.Err.
	Failed
)

func (k ResultKind) String() string {
	switch k {
	case Success:
		return "success"
	case Empty:
		return "empty"
	}
	return "failed"
}

// Entry is one line of a dump: either a record or an anomaly.
type Entry struct {
	Record protocol.Record
	// Anomaly is set when the line didn't decode.
	Anomaly *protocol.DecodeError
}

// IsAnomaly indicates the entry is a malformed line.
func (e Entry) IsAnomaly() bool {
	return e.Anomaly != nil
}

// Result is the outcome of one dump.
type Result struct {
	Kind    ResultKind
	Entries []Entry
	Err     error
}

// Records returns the decoded records in arrival order.
func (r Result) Records() []protocol.Record {
	records := make([]protocol.Record, 0, len(r.Entries))
	for _, entry := range r.Entries {
		if !entry.IsAnomaly() {
			records = append(records, entry.Record)
		}
	}
	return records
}

// Anomalies returns the malformed lines in arrival order.
func (r Result) Anomalies() []*protocol.DecodeError {
	var anomalies []*protocol.DecodeError
	for _, entry := range r.Entries {
		if entry.IsAnomaly() {
			anomalies = append(anomalies, entry.Anomaly)
		}
	}
	return anomalies
}

// IsNoData indicates nothing was read, either explicitly reported by the
// device or an END without records.
func (r Result) IsNoData() bool {
	return r.Kind == Empty || (r.Kind == Success && len(r.Records()) == 0)
}

// FailureKind classifies a failed dump.
type FailureKind int

// Failure kinds.
const (
	FailNoResponse FailureKind = iota
	FailTimeout
	FailTransport
	FailCanceled
	FailUsage
)

func (k FailureKind) String() string {
	switch k {
	case FailNoResponse:
		return "no response"
	case FailTimeout:
		return "timeout"
	case FailTransport:
		return "transport error"
	case FailCanceled:
		return "canceled"
	}
	return "usage error"
}

var (
	// ErrNoResponse indicates the device sent nothing after the request.
	ErrNoResponse = errors.New("no response from device")
	// ErrReused indicates Collect was called on a finished Collector.
	ErrReused = errors.New("collector already used")
)

// Failure is the error of a Failed result.
type Failure struct {
	Kind FailureKind
	// Received is the number of lines received before the failure.
	Received int
	Err      error
}

// Error implements error.
func (f *Failure) Error() string {
	if f.Received > 0 {
		return fmt.Sprintf("dump %s after %d lines: %v", f.Kind, f.Received, f.Err)
	}
	return fmt.Sprintf("dump %s: %v", f.Kind, f.Err)
}

// Unwrap returns the cause.
func (f *Failure) Unwrap() error {
	return f.Err
}

// FailureOf extracts the Failure from a result, or nil.
func FailureOf(r Result) *Failure {
	var f *Failure
	if errors.As(r.Err, &f) {
		return f
	}
	return nil
}
