// Package bridge forwards sensor changes to the HTTP endpoint.
// One Bridge owns the observed state of every input it serves; readings
// that equal the observed state are not sent.
package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/sweeney/sensor-bridge/internal/dht"
	"github.com/sweeney/sensor-bridge/internal/gpio"
	"github.com/sweeney/sensor-bridge/internal/logic"
	"github.com/sweeney/sensor-bridge/internal/metrics"
	"github.com/sweeney/sensor-bridge/internal/mqtt"
	"github.com/sweeney/sensor-bridge/internal/post"
	"github.com/sweeney/sensor-bridge/internal/status"
)

// Input binds a board pin to an endpoint name.
type Input struct {
	Pin  int
	Name string
}

type input struct {
	Input
	detector *logic.LevelDetector
}

type climate struct {
	name     string
	sensor   dht.Sensor
	detector *logic.ClimateDetector
	attempts int
	delay    time.Duration
}

// Bridge observes inputs and sends changes.
type Bridge struct {
	sender  post.Sender
	mirror  mqtt.Publisher
	tracker *status.Tracker
	metrics *metrics.Metrics
	logger  *log.Logger
	now     func() time.Time

	watcher gpio.Watcher
	inputs  map[int]*input // by board pin
	order   []int
	climate *climate
}

// Option configures a Bridge.
type Option func(b *Bridge)

// WithMirror publishes every outbound event to MQTT as well.
func WithMirror(p mqtt.Publisher) Option {
	return func(b *Bridge) { b.mirror = p }
}

// WithTracker records readings and counts for the status server.
func WithTracker(t *status.Tracker) Option {
	return func(b *Bridge) { b.tracker = t }
}

// WithMetrics records readings and counts for Prometheus.
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithLogger replaces the default logger.
func WithLogger(l *log.Logger) Option {
	return func(b *Bridge) { b.logger = l }
}

// WithClock replaces time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) { b.now = now }
}

func newBridge(sender post.Sender, opts []Option) *Bridge {
	b := &Bridge{
		sender: sender,
		logger: log.Default(),
		now:    time.Now,
		inputs: make(map[int]*input),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

// NewDigital creates a bridge for edge-triggered inputs read through w.
// Every input starts with an unknown observed state, so its first reading is sent.
func NewDigital(w gpio.Watcher, inputs []Input, policy logic.Policy, sender post.Sender, opts ...Option) (*Bridge, error) {
	if len(inputs) == 0 {
		return nil, errors.New("bridge: no inputs")
	}
	b := newBridge(sender, opts)
	b.watcher = w

	for _, in := range inputs {
		if _, dup := b.inputs[in.Pin]; dup {
			return nil, fmt.Errorf("bridge: pin %d bound twice", in.Pin)
		}
		b.inputs[in.Pin] = &input{Input: in, detector: logic.NewLevelDetector(policy)}
		b.order = append(b.order, in.Pin)
		if b.tracker != nil {
			b.tracker.Register(in.Name, sender.Endpoint(in.Name), logic.KindState)
		}
		b.metrics.Level(in.Name, int(logic.LevelUnknown))
	}
	return b, nil
}

// NewClimate creates a bridge for a polled temperature/humidity sensor.
// Each poll makes up to attempts reads, delay apart.
func NewClimate(s dht.Sensor, name string, attempts int, delay time.Duration, sender post.Sender, opts ...Option) *Bridge {
	b := newBridge(sender, opts)
	b.climate = &climate{
		name:     name,
		sensor:   s,
		detector: logic.NewClimateDetector(),
		attempts: attempts,
		delay:    delay,
	}
	if b.tracker != nil {
		b.tracker.Register(name, sender.Endpoint(name), logic.KindClimate)
	}
	return b
}

// HandleEdge reads the current level of the pin that fired and sends it if
// the input's policy forwards it. The level is read when the edge is handled,
// which may be after later transitions.
func (b *Bridge) HandleEdge(ctx context.Context, e gpio.Edge) {
	in, ok := b.inputs[e.Pin]
	if !ok {
		b.logger.Warnf("edge on unbound pin %d ignored", e.Pin)
		return
	}

	v, err := b.watcher.Level(e.Pin)
	if err != nil {
		b.logger.Errorf("failed to read pin %d: %v", e.Pin, err)
		b.readError()
		return
	}

	level := logic.LevelFromInt(v)
	forward := in.detector.ObserveEdge(level, e.Type == gpio.EdgeRising)
	t := b.now()
	b.metrics.Level(in.Name, int(level))
	if b.tracker != nil {
		b.tracker.Observe(in.Name, logic.KindState, level, logic.ClimateUnknown, t)
	}
	b.syncDropped()

	if !forward {
		b.logger.Debugf("%s: level %s on pin %d not forwarded", in.Name, level, e.Pin)
		return
	}
	b.deliver(ctx, logic.StateEvent(in.Name, level, t))
}

// Poll makes one retrying read of the climate sensor and sends the reading if it changed.
// A failed read is logged and counted; nothing is sent.
func (b *Bridge) Poll(ctx context.Context) {
	c := b.climate
	if c == nil {
		return
	}

	r, err := dht.ReadRetry(ctx, c.sensor, c.attempts, c.delay)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		b.logger.Errorf("failed to read sensor: %v", err)
		b.readError()
		return
	}

	reading := logic.Climate{Temperature: r.Temperature, Humidity: r.Humidity}
	t := b.now()
	b.metrics.Climate(reading.Temperature, reading.Humidity)
	if b.tracker != nil {
		b.tracker.Observe(c.name, logic.KindClimate, logic.LevelUnknown, reading, t)
	}

	if !c.detector.Observe(reading) {
		return
	}
	b.deliver(ctx, logic.ClimateEvent(c.name, reading, t))
}

// deliver sends event once and mirrors it. Failures are logged and counted,
// never returned; observed state is already updated.
func (b *Bridge) deliver(ctx context.Context, event logic.Event) {
	endpoint := b.sender.Endpoint(event.Sensor)
	b.logger.Infof("event: %s %s -> %s", event.Sensor, describe(event), endpoint)

	err := b.sender.Send(ctx, event)
	switch {
	case err == nil:
		b.count(event.Sensor, metrics.ResultSent, func(c *logic.Counts) { c.Sent++ })
	case ctx.Err() != nil:
		b.logger.Warnf("send to %q interrupted: %v", endpoint, err)
	case errors.Is(err, post.ErrUnreachable):
		b.logger.Errorf("endpoint %q cannot be reached", endpoint)
		b.logger.Debugf("send error: %v", err)
		b.count(event.Sensor, metrics.ResultUnreachable, func(c *logic.Counts) { c.Unreachable++ })
	default:
		b.logger.Errorf("send error: %v", err)
		b.count(event.Sensor, metrics.ResultFailed, func(c *logic.Counts) { c.Failed++ })
	}

	if b.mirror != nil {
		if err := b.mirror.Publish(event); err != nil {
			b.logger.Warnf("mqtt publish error: %v", err)
		}
	}
}

func describe(event logic.Event) string {
	if event.Kind == logic.KindClimate {
		return event.Climate.String()
	}
	return "state=" + event.Level.String()
}

func (b *Bridge) count(sensor, result string, fn func(c *logic.Counts)) {
	b.metrics.Event(sensor, result)
	if b.tracker != nil {
		b.tracker.Count(fn)
	}
}

func (b *Bridge) readError() {
	b.metrics.ReadError()
	if b.tracker != nil {
		b.tracker.Count(func(c *logic.Counts) { c.ReadErrors++ })
	}
}

func (b *Bridge) syncDropped() {
	if b.tracker == nil || b.watcher == nil {
		return
	}
	n := int(b.watcher.Dropped())
	b.tracker.Count(func(c *logic.Counts) { c.Dropped = n })
}

// PublishSystem publishes a lifecycle event carrying a status snapshot on the mirror.
// It is a no-op without a mirror.
func (b *Bridge) PublishSystem(event, reason string, retained bool) {
	if b.mirror == nil {
		return
	}

	ev := mqtt.SystemEvent{
		Timestamp: b.now(),
		Event:     event,
		Reason:    reason,
		Retained:  retained,
	}
	if b.tracker != nil {
		if cs, ok := b.mirror.(mqtt.ConnectionStatus); ok {
			b.tracker.SetMQTTConnected(cs.IsConnected())
		}
		b.syncDropped()
		ev.RawPayload = status.FormatStatusEvent(b.tracker.Snapshot(), event, reason)
	}

	if err := b.mirror.PublishSystem(ev); err != nil {
		b.logger.Warnf("failed to publish %s event: %v", event, err)
		return
	}
	b.logger.Infof("published %s event", event)
}

// RefreshStatus copies connection state and the dropped-edge count into the tracker.
func (b *Bridge) RefreshStatus() {
	if b.tracker == nil {
		return
	}
	if cs, ok := b.mirror.(mqtt.ConnectionStatus); ok {
		b.tracker.SetMQTTConnected(cs.IsConnected())
	}
	b.syncDropped()
}

// PrintState writes the current reading of every input to w without sending anything.
func (b *Bridge) PrintState(ctx context.Context, w io.Writer) error {
	if c := b.climate; c != nil {
		r, err := dht.ReadRetry(ctx, c.sensor, c.attempts, c.delay)
		if err != nil {
			return fmt.Errorf("read %s: %w", c.name, err)
		}
		fmt.Fprintf(w, "%s: temperature=%.1f humidity=%.1f\n", c.name, r.Temperature, r.Humidity)
		return nil
	}

	for _, pin := range b.order {
		in := b.inputs[pin]
		v, err := b.watcher.Level(pin)
		if err != nil {
			return fmt.Errorf("read pin %d: %w", pin, err)
		}
		fmt.Fprintf(w, "%s (pin %d): %s\n", in.Name, pin, logic.LevelFromInt(v))
	}
	return nil
}

// Observed returns the observed level of the input bound to pin.
func (b *Bridge) Observed(pin int) (logic.Level, bool) {
	in, ok := b.inputs[pin]
	if !ok {
		return logic.LevelUnknown, false
	}
	return in.detector.Last(), true
}

// ObservedClimate returns the observed climate reading.
func (b *Bridge) ObservedClimate() (logic.Climate, bool) {
	if b.climate == nil {
		return logic.ClimateUnknown, false
	}
	return b.climate.detector.Last(), true
}

// Close releases the claimed pins. Safe to call more than once.
func (b *Bridge) Close() error {
	if b.watcher == nil {
		return nil
	}
	return b.watcher.Close()
}
