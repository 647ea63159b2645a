package status

import (
	"encoding/json"
	"time"

	"github.com/sweeney/sensor-bridge/internal/logic"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Sensors       []SensorJSON `json:"sensors"`
	Ready         bool         `json:"ready"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Config        ConfigJSON   `json:"config"`
}

// SensorJSON is the JSON representation of one sensor reading.
// Value fields are omitted until the sensor has produced a reading.
type SensorJSON struct {
	Name        string   `json:"name"`
	Endpoint    string   `json:"endpoint"`
	State       *int     `json:"state,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	Humidity    *float64 `json:"humidity,omitempty"`
	Updated     string   `json:"updated,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	Sent        int `json:"sent"`
	Unreachable int `json:"unreachable"`
	Failed      int `json:"failed"`
	Dropped     int `json:"dropped"`
	ReadErrors  int `json:"read_errors"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Sensor      string `json:"sensor"`
	BaseURL     string `json:"base_url"`
	Pins        []int  `json:"pins,omitempty"`
	Policy      string `json:"policy,omitempty"`
	DebounceMs  int64  `json:"debounce_ms"`
	PollMs      int64  `json:"poll_ms,omitempty"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildSensor(r Reading) SensorJSON {
	s := SensorJSON{Name: r.Sensor, Endpoint: r.Endpoint}
	if r.Updated.IsZero() {
		return s
	}
	s.Updated = r.Updated.UTC().Format(time.RFC3339)

	switch r.Kind {
	case logic.KindClimate:
		temp, hum := r.Climate.Temperature, r.Climate.Humidity
		s.Temperature = &temp
		s.Humidity = &hum
	default:
		if r.Level == logic.Low || r.Level == logic.High {
			v := int(r.Level)
			s.State = &v
		}
	}
	return s
}

func buildInner(snap Snapshot) StatusInner {
	sensors := make([]SensorJSON, 0, len(snap.Readings))
	for _, r := range snap.Readings {
		sensors = append(sensors, buildSensor(r))
	}

	return StatusInner{
		Sensors:       sensors,
		Ready:         snap.Ready(),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Sent:        snap.Counts.Sent,
			Unreachable: snap.Counts.Unreachable,
			Failed:      snap.Counts.Failed,
			Dropped:     snap.Counts.Dropped,
			ReadErrors:  snap.Counts.ReadErrors,
		},
		Config: ConfigJSON{
			Sensor:      snap.Config.Sensor,
			BaseURL:     snap.Config.BaseURL,
			Pins:        snap.Config.Pins,
			Policy:      snap.Config.Policy,
			DebounceMs:  snap.Config.DebounceMs,
			PollMs:      snap.Config.PollMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
