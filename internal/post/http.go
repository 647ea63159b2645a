package post

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/sweeney/sensor-bridge/internal/logic"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HTTPSender posts events to <baseURL><sensor>.
type HTTPSender struct {
	client  *http.Client
	baseURL string
}

// Option configures an HTTPSender.
type Option func(s *HTTPSender)

// WithClient replaces the default client.
func WithClient(c *http.Client) Option {
	return func(s *HTTPSender) {
		s.client = c
	}
}

// NewHTTPSender creates a sender for the given base URL.
// The default client has no timeout of its own; a hanging endpoint holds
// the caller until the request context is cancelled.
func NewHTTPSender(baseURL string, opts ...Option) *HTTPSender {
	s := &HTTPSender{
		baseURL: baseURL,
		client:  &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Endpoint returns the URL for sensor.
func (s *HTTPSender) Endpoint(sensor string) string {
	return s.baseURL + sensor
}

// Send posts the event once. Any HTTP status counts as delivered.
func (s *HTTPSender) Send(ctx context.Context, event logic.Event) error {
	endpoint := s.Endpoint(event.Sensor)

	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("send to %q: %w", endpoint, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return NewSendError(endpoint, err)
	}
	// Drained so the connection can be reused; the body is never inspected.
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return nil
}
