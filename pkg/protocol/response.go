package protocol

import (
	"strings"
)

// Sentinel lines.
const (
	EndMarker    = "END"
	NoDataMarker = "No valid data in EEPROM to read."
)

// Kind tags a decoded line.
type Kind int

// Line kinds.
const (
	KindMalformed Kind = iota
	KindRecord
	KindState
	KindEnd
	KindNoData
)

func (k Kind) String() string {
	switch k {
	case KindRecord:
		return "record"
	case KindState:
		return "state"
	case KindEnd:
		return "end"
	case KindNoData:
		return "no-data"
	}
	return "malformed"
}

// Record is one EEPROM entry.
type Record struct {
	Address string `json:"address"`
	Value   string `json:"value"`
}

// String renders the record as "address,value".
func (r Record) String() string {
	return r.Address + "," + r.Value
}

// StateVector holds the sensor flags, addressed 1..NumSensors.
type StateVector [NumSensors]bool

// Get returns flag n. Out of range indices read as false.
func (v StateVector) Get(n int) bool {
	if n < 1 || n > NumSensors {
		return false
	}
	return v[n-1]
}

// Flip returns a copy with flag n inverted.
func (v StateVector) Flip(n int) StateVector {
	if n >= 1 && n <= NumSensors {
		v[n-1] = !v[n-1]
	}
	return v
}

// String renders the vector in wire format, e.g. "1 0 1 0".
func (v StateVector) String() string {
	digits := make([]string, len(v))
	for n, on := range v {
		if on {
			digits[n] = "1"
		} else {
			digits[n] = "0"
		}
	}
	return strings.Join(digits, " ")
}

// Response is a decoded line.
type Response struct {
	Kind   Kind
	Record Record
	State  StateVector
	Raw    string
	Reason string
}

// IsSentinel indicates the line terminates a dump.
func (r Response) IsSentinel() bool {
	return r.Kind == KindEnd || r.Kind == KindNoData
}

// Err returns a DecodeError for malformed lines, nil otherwise.
func (r Response) Err() error {
	if r.Kind != KindMalformed {
		return nil
	}
	return &DecodeError{Line: r.Raw, Reason: r.Reason}
}

func malformed(raw, reason string) Response {
	return Response{Kind: KindMalformed, Raw: raw, Reason: reason}
}

// DecodeDumpLine decodes a line received during a dump.
func DecodeDumpLine(line string) Response {
	text := strings.TrimSpace(line)
	switch text {
	case EndMarker:
		return Response{Kind: KindEnd, Raw: line}
	case NoDataMarker:
		return Response{Kind: KindNoData, Raw: line}
	case "":
		return malformed(line, "empty line")
	}
	switch strings.Count(text, ": ") {
	case 0:
		return malformed(line, "missing \": \" separator")
	case 1:
	default:
		return malformed(line, "more than one \": \" separator")
	}
	sep := strings.Index(text, ": ")
	tokens := strings.Fields(text[:sep])
	if len(tokens) == 0 {
		return malformed(line, "missing address")
	}
	value := strings.TrimSpace(text[sep+2:])
	if value == "" {
		return malformed(line, "missing value")
	}
	return Response{
		Kind:   KindRecord,
		Record: Record{Address: tokens[len(tokens)-1], Value: value},
		Raw:    line,
	}
}

// DecodeStateLine decodes the reply of QueryState.
func DecodeStateLine(line string) Response {
	tokens := strings.Fields(line)
	if len(tokens) != NumSensors {
		return malformed(line, "expect 4 flags")
	}
	var v StateVector
	for n, token := range tokens {
		switch token {
		case "0":
		case "1":
			v[n] = true
		default:
			return malformed(line, "flags must be 0 or 1")
		}
	}
	return Response{Kind: KindState, State: v, Raw: line}
}
