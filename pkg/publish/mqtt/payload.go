package mqtt

import (
	"time"

	"github.com/golang/protobuf/jsonpb"
	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/datalogger/pkg/device"
	"github.com/robotalks/datalogger/pkg/dump"
	"github.com/robotalks/datalogger/pkg/protocol"
)

// Payload field names.
const (
	FieldEndpoint  = "endpoint"
	FieldTime      = "time"
	FieldKind      = "kind"
	FieldCategory  = "category"
	FieldRecords   = "records"
	FieldAnomalies = "anomalies"
	FieldError     = "error"
	FieldSensors   = "sensors"
	FieldStatus    = "status"
)

func stringValue(s string) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}}
}

func boolValue(b bool) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_BoolValue{BoolValue: b}}
}

func listValue(values []*structpb.Value) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_ListValue{ListValue: &structpb.ListValue{Values: values}}}
}

func structValue(fields map[string]*structpb.Value) *structpb.Value {
	return &structpb.Value{Kind: &structpb.Value_StructValue{StructValue: &structpb.Struct{Fields: fields}}}
}

func newPayload(endpoint string, at time.Time) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		FieldEndpoint: stringValue(endpoint),
		FieldTime:     stringValue(at.UTC().Format(time.RFC3339Nano)),
	}}
}

// ResultPayload builds the payload of a dump result.
func ResultPayload(endpoint string, res dump.Result, at time.Time) *structpb.Struct {
	p := newPayload(endpoint, at)
	p.Fields[FieldKind] = stringValue(res.Kind.String())
	p.Fields[FieldCategory] = stringValue(device.ClassifyResult(res).String())
	records := []*structpb.Value{}
	for _, rec := range res.Records() {
		records = append(records, structValue(map[string]*structpb.Value{
			"address": stringValue(rec.Address),
			"value":   stringValue(rec.Value),
		}))
	}
	p.Fields[FieldRecords] = listValue(records)
	if anomalies := res.Anomalies(); len(anomalies) > 0 {
		lines := make([]*structpb.Value, len(anomalies))
		for n, anomaly := range anomalies {
			lines[n] = stringValue(anomaly.Line)
		}
		p.Fields[FieldAnomalies] = listValue(lines)
	}
	if res.Err != nil {
		p.Fields[FieldError] = stringValue(res.Err.Error())
	}
	return p
}

// StatePayload builds the payload of sensor flags.
func StatePayload(endpoint string, states protocol.StateVector, at time.Time) *structpb.Struct {
	p := newPayload(endpoint, at)
	flags := make([]*structpb.Value, len(states))
	for n, on := range states {
		flags[n] = boolValue(on)
	}
	p.Fields[FieldSensors] = listValue(flags)
	return p
}

// StatusPayload builds the retained online/offline payload.
func StatusPayload(endpoint, status string, at time.Time) *structpb.Struct {
	p := newPayload(endpoint, at)
	p.Fields[FieldStatus] = stringValue(status)
	return p
}

// Encode serializes a payload.
func Encode(p *structpb.Struct) ([]byte, error) {
	return proto.Marshal(p)
}

// Decode parses a payload.
func Decode(data []byte) (*structpb.Struct, error) {
	var p structpb.Struct
	if err := proto.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// FormatJSON renders a payload as JSON.
func FormatJSON(p *structpb.Struct) (string, error) {
	m := jsonpb.Marshaler{}
	return m.MarshalToString(p)
}
