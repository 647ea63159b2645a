package gpio

import (
	"fmt"
	"sync"
	"time"
)

// FakeWatcher is a test double that delivers scripted edges and levels.
type FakeWatcher struct {
	mu      sync.Mutex
	levels  map[int]int
	events  chan Edge
	closes  int
	release sync.Once

	// Releases counts how many times the pins were actually released.
	Releases int

	// LevelError, if set, will be returned by Level().
	LevelError error

	dropped uint64
}

// NewFakeWatcher creates a FakeWatcher with the given board pins bound at level 0.
func NewFakeWatcher(pins ...int) *FakeWatcher {
	f := &FakeWatcher{
		levels: make(map[int]int, len(pins)),
		events: make(chan Edge, EventBuffer),
	}
	for _, p := range pins {
		f.levels[p] = 0
	}
	return f
}

// SetLevel sets the value Level() reports for pin.
func (f *FakeWatcher) SetLevel(pin, value int) {
	f.mu.Lock()
	f.levels[pin] = value
	f.mu.Unlock()
}

// Emit pushes an edge without changing the pin level. Returns false if the
// channel was full and the edge was dropped.
func (f *FakeWatcher) Emit(pin int, t EdgeType) bool {
	ok := push(f.events, Edge{Pin: pin, Type: t, Time: time.Now()})
	if !ok {
		f.mu.Lock()
		f.dropped++
		f.mu.Unlock()
	}
	return ok
}

// Trigger sets the pin level and emits the matching edge.
func (f *FakeWatcher) Trigger(pin, value int) bool {
	f.SetLevel(pin, value)
	t := EdgeFalling
	if value != 0 {
		t = EdgeRising
	}
	return f.Emit(pin, t)
}

// Edges returns the edge channel.
func (f *FakeWatcher) Edges() <-chan Edge {
	return f.events
}

// Level returns the scripted level for pin.
func (f *FakeWatcher) Level(pin int) (int, error) {
	if f.LevelError != nil {
		return 0, f.LevelError
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.levels[pin]
	if !ok {
		return 0, fmt.Errorf("pin %d is not bound", pin)
	}
	return v, nil
}

// Dropped returns how many edges did not fit in the channel.
func (f *FakeWatcher) Dropped() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

// Close records the call and releases pins once.
func (f *FakeWatcher) Close() error {
	f.mu.Lock()
	f.closes++
	f.mu.Unlock()
	f.release.Do(func() {
		f.mu.Lock()
		f.Releases++
		f.mu.Unlock()
	})
	return nil
}

// Closes returns how many times Close was called.
func (f *FakeWatcher) Closes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}
