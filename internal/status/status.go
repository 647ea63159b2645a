// Package status provides a thread-safe status tracker for the sensor-bridge daemon.
// It is read by the HTTP status handlers and by heartbeat publishing.
package status

import (
	"sort"
	"sync"
	"time"

	"github.com/sweeney/sensor-bridge/internal/logic"
)

// Config contains daemon configuration for display.
type Config struct {
	Sensor      string
	BaseURL     string
	Pins        []int
	Policy      string
	DebounceMs  int64
	PollMs      int64
	HeartbeatMs int64
	Broker      string
	HTTPAddr    string
}

// Reading is the observed state of one sensor endpoint.
type Reading struct {
	Sensor   string
	Endpoint string
	Kind     logic.Kind
	Level    logic.Level
	Climate  logic.Climate
	Updated  time.Time // zero until the first reading
}

// Value formats the reading for display.
func (r Reading) Value() string {
	if r.Updated.IsZero() {
		return "UNKNOWN"
	}
	if r.Kind == logic.KindClimate {
		return r.Climate.String()
	}
	return r.Level.String()
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type and safe to use after the lock is released.
type Snapshot struct {
	Readings      []Reading // sorted by sensor name
	Counts        logic.Counts
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Ready reports whether every sensor has produced a reading.
func (s Snapshot) Ready() bool {
	if len(s.Readings) == 0 {
		return false
	}
	for _, r := range s.Readings {
		if r.Updated.IsZero() {
			return false
		}
	}
	return true
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu        sync.RWMutex
	readings  map[string]Reading
	counts    logic.Counts
	start     time.Time
	connected bool
	cfg       Config
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		readings: make(map[string]Reading),
		start:    startTime,
		cfg:      cfg,
	}
}

// Register adds a sensor with no reading yet.
func (t *Tracker) Register(sensor, endpoint string, kind logic.Kind) {
	t.mu.Lock()
	t.readings[sensor] = Reading{
		Sensor:   sensor,
		Endpoint: endpoint,
		Kind:     kind,
		Level:    logic.LevelUnknown,
		Climate:  logic.ClimateUnknown,
	}
	t.mu.Unlock()
}

// Observe stores the latest value of a sensor, whether or not it was forwarded.
// Unregistered sensors are added.
func (t *Tracker) Observe(sensor string, kind logic.Kind, level logic.Level, c logic.Climate, at time.Time) {
	t.mu.Lock()
	r := t.readings[sensor]
	r.Sensor = sensor
	r.Kind = kind
	r.Level = level
	r.Climate = c
	r.Updated = at
	t.readings[sensor] = r
	t.mu.Unlock()
}

// Count applies fn to the event counters.
func (t *Tracker) Count(fn func(c *logic.Counts)) {
	t.mu.Lock()
	fn(&t.counts)
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.connected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := Snapshot{
		Readings:      make([]Reading, 0, len(t.readings)),
		Counts:        t.counts,
		StartTime:     t.start,
		MQTTConnected: t.connected,
		Config:        t.cfg,
	}
	for _, r := range t.readings {
		s.Readings = append(s.Readings, r)
	}
	t.mu.RUnlock()

	sort.Slice(s.Readings, func(i, j int) bool {
		return s.Readings[i].Sensor < s.Readings[j].Sensor
	})
	s.Config.Pins = append([]int(nil), s.Config.Pins...)
	s.Now = time.Now()
	return s
}
