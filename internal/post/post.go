// Package post sends sensor events to an HTTP endpoint with abstraction for testing.
package post

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"

	"github.com/sweeney/sensor-bridge/internal/logic"
)

// DefaultBaseURL is prefixed to the sensor name to form the endpoint.
const DefaultBaseURL = "http://nicopi.local:8080/sensor/"

// ErrUnreachable matches send errors caused by the endpoint not accepting a connection.
var ErrUnreachable = errors.New("endpoint cannot be reached")

// Sender sends sensor events.
type Sender interface {
	// Send makes a single delivery attempt. The response is not inspected.
	// Returns error if the attempt failed (should not crash the process).
	Send(ctx context.Context, event logic.Event) error

	// Endpoint returns the URL events for sensor are sent to.
	Endpoint(sensor string) string
}

// SendError reports a failed delivery attempt.
type SendError struct {
	Endpoint    string
	Err         error
	unreachable bool
}

func (e *SendError) Error() string {
	if e.unreachable {
		return fmt.Sprintf("endpoint %q cannot be reached: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("send to %q: %v", e.Endpoint, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// Is reports ErrUnreachable for connection failures.
func (e *SendError) Is(target error) bool {
	return target == ErrUnreachable && e.unreachable
}

// Unreachable reports whether the endpoint did not accept a connection.
func (e *SendError) Unreachable() bool { return e.unreachable }

// NewSendError classifies err as a connection failure or another send error.
func NewSendError(endpoint string, err error) *SendError {
	return &SendError{Endpoint: endpoint, Err: err, unreachable: isConnectionError(err)}
}

// isConnectionError matches DNS failures and dial/read/write errors on the socket.
// Context cancellation is not a connection error.
func isConnectionError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// StatePayload is the body sent for digital sensors.
type StatePayload struct {
	State int `json:"state"`
}

// ClimatePayload is the body sent for the temperature/humidity sensor.
type ClimatePayload struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// FormatPayload creates the JSON body for an event.
func FormatPayload(event logic.Event) ([]byte, error) {
	switch event.Kind {
	case logic.KindState:
		if event.Level != logic.Low && event.Level != logic.High {
			return nil, fmt.Errorf("format payload: invalid level %d", event.Level)
		}
		return json.Marshal(StatePayload{State: int(event.Level)})
	case logic.KindClimate:
		return json.Marshal(ClimatePayload{
			Temperature: event.Climate.Temperature,
			Humidity:    event.Climate.Humidity,
		})
	default:
		return nil, fmt.Errorf("format payload: unknown kind %q", event.Kind)
	}
}
