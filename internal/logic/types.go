// Package logic contains pure change-detection logic for the sensor bridge.
// This package has NO external dependencies (no GPIO, HTTP, MQTT, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import (
	"fmt"
	"time"
)

// Level is the logic level of a digital input.
type Level int

const (
	// LevelUnknown is the sentinel held before the first reading.
	LevelUnknown Level = -1
	Low          Level = 0
	High         Level = 1
)

// String returns "0", "1" or "UNKNOWN".
func (l Level) String() string {
	switch l {
	case Low:
		return "0"
	case High:
		return "1"
	default:
		return "UNKNOWN"
	}
}

// LevelFromInt converts a raw line value into a Level. Any non-zero value is High.
func LevelFromInt(v int) Level {
	if v != 0 {
		return High
	}
	return Low
}

// Climate is a combined temperature/humidity reading.
type Climate struct {
	Temperature float64 // degrees Celsius
	Humidity    float64 // percent relative humidity
}

// ClimateUnknown is the sentinel held before the first successful reading.
var ClimateUnknown = Climate{Temperature: -1.0, Humidity: -1.0}

// String formats the reading for logs.
func (c Climate) String() string {
	return fmt.Sprintf("%.1fC %.1f%%", c.Temperature, c.Humidity)
}

// Kind says which reading an Event carries.
type Kind string

const (
	KindState   Kind = "state"
	KindClimate Kind = "climate"
)

// Event is a detected change to be sent to the sensor endpoint.
type Event struct {
	Sensor    string // endpoint name, e.g. "photo1" or "button2"
	Timestamp time.Time
	Kind      Kind
	Level     Level   // set when Kind == KindState
	Climate   Climate // set when Kind == KindClimate
}

// StateEvent builds a digital state event.
func StateEvent(sensor string, level Level, t time.Time) Event {
	return Event{Sensor: sensor, Timestamp: t, Kind: KindState, Level: level}
}

// ClimateEvent builds a temperature/humidity event.
func ClimateEvent(sensor string, c Climate, t time.Time) Event {
	return Event{Sensor: sensor, Timestamp: t, Kind: KindClimate, Climate: c}
}

// Policy selects which level changes are forwarded.
type Policy int

const (
	// ForwardChanges forwards every change of level.
	ForwardChanges Policy = iota
	// ForwardRising records every level but forwards only rising edges that read High.
	ForwardRising
)

// String returns the flag spelling of the policy.
func (p Policy) String() string {
	switch p {
	case ForwardChanges:
		return "changes"
	case ForwardRising:
		return "rising"
	default:
		return "unknown"
	}
}

// Counts tracks the number of events forwarded and sends that failed since startup.
type Counts struct {
	Sent        int
	Unreachable int
	Failed      int
	Dropped     int // edges dropped because the event channel was full
	ReadErrors  int
}
