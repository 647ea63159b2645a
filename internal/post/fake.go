package post

import (
	"context"
	"sync"

	"github.com/sweeney/sensor-bridge/internal/logic"
)

// FakeSender records sent events for test assertions.
type FakeSender struct {
	mu sync.Mutex

	// BaseURL is prefixed to sensor names by Endpoint.
	BaseURL string

	// Events contains all events that were sent successfully.
	Events []logic.Event

	// Endpoints contains the endpoint of each sent event.
	Endpoints []string

	// Payloads contains the JSON bodies that were sent.
	Payloads [][]byte

	// Attempts counts every Send call, including failed ones.
	Attempts int

	// SendError, if set, will be returned by Send.
	SendError error
}

// NewFakeSender creates a FakeSender for testing.
func NewFakeSender(baseURL string) *FakeSender {
	return &FakeSender{BaseURL: baseURL}
}

// Endpoint returns the URL for sensor.
func (f *FakeSender) Endpoint(sensor string) string {
	return f.BaseURL + sensor
}

// Send records the event.
func (f *FakeSender) Send(ctx context.Context, event logic.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Attempts++
	if f.SendError != nil {
		return f.SendError
	}

	payload, err := FormatPayload(event)
	if err != nil {
		return err
	}

	f.Events = append(f.Events, event)
	f.Endpoints = append(f.Endpoints, f.BaseURL+event.Sensor)
	f.Payloads = append(f.Payloads, payload)
	return nil
}

// Sent returns a copy of the recorded events.
func (f *FakeSender) Sent() []logic.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]logic.Event(nil), f.Events...)
}

// AttemptCount returns Attempts under the lock.
func (f *FakeSender) AttemptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Attempts
}

// Reset clears recorded events.
func (f *FakeSender) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Events = nil
	f.Endpoints = nil
	f.Payloads = nil
	f.Attempts = 0
	f.SendError = nil
}
