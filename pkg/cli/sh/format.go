package sh

import (
	"fmt"
	"time"

	"github.com/robotalks/datalogger/pkg/device"
	"github.com/robotalks/datalogger/pkg/dump"
	"github.com/robotalks/datalogger/pkg/protocol"
	"github.com/robotalks/datalogger/pkg/publish/mqtt"
)

// Messages shown for results without records.
const (
	MsgNoValidData = protocol.NoDataMarker
	MsgNoData      = "No data received."
	MsgLoading     = "Loading..."
)

// FormatResult renders a dump result as display lines.
func FormatResult(res dump.Result) []string {
	switch res.Kind {
	case dump.Failed:
		return []string{fmt.Sprintf("Error (%s): %v", device.ClassifyResult(res), res.Err)}
	case dump.Empty:
		return []string{MsgNoValidData}
	}
	lines := make([]string, 0, len(res.Entries)+1)
	records := 0
	for _, entry := range res.Entries {
		if entry.IsAnomaly() {
			lines = append(lines, fmt.Sprintf("Warning: %v", entry.Anomaly))
			continue
		}
		records++
		lines = append(lines, entry.Record.String())
	}
	if records == 0 {
		lines = append(lines, MsgNoData)
	}
	return lines
}

// FormatState renders the sensor flags.
func FormatState(states protocol.StateVector) string {
	return fmt.Sprintf("Sensors: %s", states)
}

// FormatResultJSON renders a dump result the way it's published.
func FormatResultJSON(endpoint string, res dump.Result) (string, error) {
	return mqtt.FormatJSON(mqtt.ResultPayload(endpoint, res, time.Now()))
}

// FormatStateJSON renders the sensor flags the way they're published.
func FormatStateJSON(endpoint string, states protocol.StateVector) (string, error) {
	return mqtt.FormatJSON(mqtt.StatePayload(endpoint, states, time.Now()))
}
