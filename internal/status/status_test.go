package status

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/sweeney/sensor-bridge/internal/logic"
)

var start = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestNewTracker(t *testing.T) {
	cfg := Config{Sensor: "buttons", Pins: []int{15, 13, 12, 11}, DebounceMs: 200, HTTPAddr: ":8081"}
	tr := NewTracker(start, cfg)

	snap := tr.Snapshot()
	if !snap.StartTime.Equal(start) {
		t.Errorf("StartTime: got %v, want %v", snap.StartTime, start)
	}
	if snap.Config.DebounceMs != 200 {
		t.Errorf("Config.DebounceMs: got %d, want 200", snap.Config.DebounceMs)
	}
	if snap.Config.HTTPAddr != ":8081" {
		t.Errorf("Config.HTTPAddr: got %q, want %q", snap.Config.HTTPAddr, ":8081")
	}
	if snap.Ready() {
		t.Error("expected Ready=false with no sensors")
	}
	if snap.MQTTConnected {
		t.Error("expected MQTTConnected=false initially")
	}
}

func TestRegisterStartsUnknown(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.Register("photo1", "http://x/sensor/photo1", logic.KindState)

	snap := tr.Snapshot()
	if len(snap.Readings) != 1 {
		t.Fatalf("expected 1 reading, got %d", len(snap.Readings))
	}
	r := snap.Readings[0]
	if r.Level != logic.LevelUnknown {
		t.Errorf("Level: got %v, want UNKNOWN", r.Level)
	}
	if r.Value() != "UNKNOWN" {
		t.Errorf("Value: got %q, want UNKNOWN", r.Value())
	}
	if snap.Ready() {
		t.Error("expected Ready=false before first reading")
	}
}

func TestObserveAndSnapshot(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.Register("button1", "http://x/sensor/button1", logic.KindState)
	tr.Register("button0", "http://x/sensor/button0", logic.KindState)

	at := start.Add(time.Minute)
	tr.Observe("button1", logic.KindState, logic.High, logic.ClimateUnknown, at)
	tr.Observe("button0", logic.KindState, logic.Low, logic.ClimateUnknown, at)

	snap := tr.Snapshot()
	if len(snap.Readings) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(snap.Readings))
	}
	if snap.Readings[0].Sensor != "button0" || snap.Readings[1].Sensor != "button1" {
		t.Errorf("readings not sorted: %v, %v", snap.Readings[0].Sensor, snap.Readings[1].Sensor)
	}
	if snap.Readings[1].Value() != "1" {
		t.Errorf("button1 value: got %q, want 1", snap.Readings[1].Value())
	}
	if snap.Readings[1].Endpoint != "http://x/sensor/button1" {
		t.Errorf("endpoint lost on Observe: %q", snap.Readings[1].Endpoint)
	}
	if !snap.Ready() {
		t.Error("expected Ready=true once every sensor has a reading")
	}
}

func TestObserveClimate(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.Observe("dht11", logic.KindClimate, logic.LevelUnknown, logic.Climate{Temperature: 22, Humidity: 45}, start)

	r := tr.Snapshot().Readings[0]
	if r.Value() != "22.0C 45.0%" {
		t.Errorf("Value: got %q", r.Value())
	}
}

func TestCount(t *testing.T) {
	tr := NewTracker(start, Config{})
	tr.Count(func(c *logic.Counts) { c.Sent++ })
	tr.Count(func(c *logic.Counts) { c.Sent++; c.Unreachable++ })

	c := tr.Snapshot().Counts
	if c.Sent != 2 {
		t.Errorf("Sent: got %d, want 2", c.Sent)
	}
	if c.Unreachable != 1 {
		t.Errorf("Unreachable: got %d, want 1", c.Unreachable)
	}
}

func TestSetMQTTConnected(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})

	tr.SetMQTTConnected(true)
	if !tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=true")
	}

	tr.SetMQTTConnected(false)
	if tr.Snapshot().MQTTConnected {
		t.Error("expected MQTTConnected=false")
	}
}

func TestSnapshotUptime(t *testing.T) {
	snap := Snapshot{
		StartTime: start,
		Now:       start.Add(15 * time.Minute),
	}

	if snap.Uptime() != 15*time.Minute {
		t.Errorf("Uptime: got %v, want 15m", snap.Uptime())
	}
}

func TestSnapshotNowIsSet(t *testing.T) {
	tr := NewTracker(start, Config{})

	before := time.Now()
	snap := tr.Snapshot()
	after := time.Now()

	if snap.Now.Before(before) || snap.Now.After(after) {
		t.Errorf("Now (%v) not between %v and %v", snap.Now, before, after)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	tr := NewTracker(time.Now(), Config{Pins: []int{11}})
	tr.Observe("button1", logic.KindState, logic.High, logic.ClimateUnknown, start)

	snap1 := tr.Snapshot()
	snap1.Config.Pins[0] = 99

	tr.Observe("button1", logic.KindState, logic.Low, logic.ClimateUnknown, start)

	if snap1.Readings[0].Level != logic.High {
		t.Error("snapshot should be a copy; reading was modified")
	}
	if tr.Snapshot().Config.Pins[0] != 11 {
		t.Error("snapshot pins should not alias tracker config")
	}
}

func testSnapshot() Snapshot {
	return Snapshot{
		Readings: []Reading{
			{Sensor: "button0", Endpoint: "http://x/sensor/button0", Kind: logic.KindState, Level: logic.LevelUnknown},
			{Sensor: "button2", Endpoint: "http://x/sensor/button2", Kind: logic.KindState, Level: logic.High, Updated: start.Add(time.Minute)},
		},
		Counts:        logic.Counts{Sent: 5, Unreachable: 2, ReadErrors: 1},
		StartTime:     start,
		Now:           start.Add(15 * time.Minute),
		MQTTConnected: true,
		Config:        Config{Sensor: "buttons", BaseURL: "http://x/sensor/", Pins: []int{15, 13, 12, 11}, Policy: "rising", DebounceMs: 200, HeartbeatMs: 900000, Broker: "tcp://localhost:1883", HTTPAddr: ":8081"},
	}
}

func TestFormatJSON(t *testing.T) {
	data := FormatJSON(testSnapshot())

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if len(parsed.Status.Sensors) != 2 {
		t.Fatalf("expected 2 sensors, got %d", len(parsed.Status.Sensors))
	}
	if parsed.Status.Sensors[0].State != nil {
		t.Errorf("button0 state: got %v, want omitted", *parsed.Status.Sensors[0].State)
	}
	if s := parsed.Status.Sensors[1].State; s == nil || *s != 1 {
		t.Errorf("button2 state: got %v, want 1", s)
	}
	if parsed.Status.Ready {
		t.Error("expected Ready=false while button0 has no reading")
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
	if !parsed.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if parsed.Status.Counts.Sent != 5 || parsed.Status.Counts.Unreachable != 2 {
		t.Errorf("Counts: got %+v", parsed.Status.Counts)
	}
	if parsed.Status.Config.Policy != "rising" {
		t.Errorf("Config.Policy: got %q, want rising", parsed.Status.Config.Policy)
	}
	if parsed.Status.Event != "" || parsed.Status.Reason != "" {
		t.Error("expected empty Event and Reason for web format")
	}
}

func TestFormatJSONClimate(t *testing.T) {
	snap := Snapshot{
		Readings: []Reading{
			{Sensor: "dht11", Kind: logic.KindClimate, Climate: logic.Climate{Temperature: 22, Humidity: 45}, Updated: start},
		},
		StartTime: start,
		Now:       start,
	}

	var parsed StatusJSON
	if err := json.Unmarshal(FormatJSON(snap), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	s := parsed.Status.Sensors[0]
	if s.Temperature == nil || *s.Temperature != 22 {
		t.Errorf("temperature: got %v, want 22", s.Temperature)
	}
	if s.Humidity == nil || *s.Humidity != 45 {
		t.Errorf("humidity: got %v, want 45", s.Humidity)
	}
	if s.State != nil {
		t.Error("climate sensor should not carry a state")
	}
}

func TestFormatStatusEvent(t *testing.T) {
	data := FormatStatusEvent(testSnapshot(), "SHUTDOWN", "SIGINT")

	var parsed StatusJSON
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if parsed.Status.Event != "SHUTDOWN" {
		t.Errorf("Event: got %q, want SHUTDOWN", parsed.Status.Event)
	}
	if parsed.Status.Reason != "SIGINT" {
		t.Errorf("Reason: got %q, want SIGINT", parsed.Status.Reason)
	}
	if parsed.Status.UptimeSeconds != 900 {
		t.Errorf("UptimeSeconds: got %d, want 900", parsed.Status.UptimeSeconds)
	}
}

func TestFormatStatusEventOmitsReasonWhenEmpty(t *testing.T) {
	data := FormatStatusEvent(Snapshot{StartTime: start, Now: start}, "STARTUP", "")

	var raw map[string]map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if _, exists := raw["status"]["reason"]; exists {
		t.Error("reason should be omitted when empty")
	}
	if raw["status"]["event"] != "STARTUP" {
		t.Errorf("event: got %v, want STARTUP", raw["status"]["event"])
	}
}

func TestConcurrentAccess(t *testing.T) {
	tr := NewTracker(time.Now(), Config{})
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			tr.Observe("photo1", logic.KindState, logic.LevelFromInt(i%2), logic.ClimateUnknown, time.Now())
			tr.Count(func(c *logic.Counts) { c.Sent++ })
			tr.SetMQTTConnected(i%2 == 0)
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 1000; i++ {
			snap := tr.Snapshot()
			_ = FormatJSON(snap)
		}
	}()

	wg.Wait()
}
