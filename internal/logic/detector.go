package logic

import "sync"

// LevelDetector holds the observed state of one digital input.
// It is safe for concurrent use; edge handlers may run on a goroutine
// owned by the GPIO library.
type LevelDetector struct {
	mu     sync.Mutex
	last   Level
	policy Policy
}

// NewLevelDetector creates a detector whose observed state starts at LevelUnknown,
// so the first real reading is always a change.
func NewLevelDetector(policy Policy) *LevelDetector {
	return &LevelDetector{last: LevelUnknown, policy: policy}
}

// Observe records a level read without edge information. A High level
// counts as a rising edge.
func (d *LevelDetector) Observe(level Level) bool {
	return d.ObserveEdge(level, level == High)
}

// ObserveEdge records the level read after an edge and reports whether it
// should be forwarded.
//
// ForwardChanges forwards when level differs from the observed state.
// ForwardRising forwards only a rising edge that reads High, and does not
// compare against the observed state: a press whose release was missed is
// still a press.
func (d *LevelDetector) ObserveEdge(level Level, rising bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.policy == ForwardRising {
		d.last = level
		return rising && level == High
	}

	if level == d.last {
		return false
	}
	d.last = level
	return true
}

// Last returns the observed state.
func (d *LevelDetector) Last() Level {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}

// Policy returns the forwarding policy.
func (d *LevelDetector) Policy() Policy {
	return d.policy
}

// ClimateDetector holds the observed state of a temperature/humidity sensor.
type ClimateDetector struct {
	mu   sync.Mutex
	last Climate
}

// NewClimateDetector creates a detector whose observed state starts at ClimateUnknown.
func NewClimateDetector() *ClimateDetector {
	return &ClimateDetector{last: ClimateUnknown}
}

// Observe records c and reports whether it differs from the previous reading.
// Both values are compared exactly.
func (d *ClimateDetector) Observe(c Climate) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if c == d.last {
		return false
	}
	d.last = c
	return true
}

// Last returns the observed state.
func (d *ClimateDetector) Last() Climate {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.last
}
