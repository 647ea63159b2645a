// Package metrics exposes bridge counters and the last climate reading to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sensor_bridge"

// Send outcomes used as the "result" label.
const (
	ResultSent        = "sent"
	ResultUnreachable = "unreachable"
	ResultFailed      = "failed"
)

// Metrics holds the bridge collectors and the registry they are registered on.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	events      *prometheus.CounterVec
	levels      *prometheus.GaugeVec
	readErrors  prometheus.Counter
	dropped     prometheus.CounterFunc
	temperature prometheus.Gauge
	humidity    prometheus.Gauge
}

// New creates a registry with process and Go collectors plus the bridge metrics.
// dropped reports the watcher's dropped-edge count; it may be nil.
func New(dropped func() uint64) *Metrics {
	if dropped == nil {
		dropped = func() uint64 { return 0 }
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Outbound events by sensor and delivery result.",
		}, []string{"sensor", "result"}),
		levels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "level",
			Help:      "Last observed level of each digital input (-1 before the first reading).",
		}, []string{"sensor"}),
		readErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_errors_total",
			Help:      "Sensor reads that failed after all retries.",
		}),
		dropped: prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "edges_dropped_total",
			Help:      "Edges dropped because the event channel was full.",
		}, func() float64 { return float64(dropped()) }),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "temperature_celsius",
			Help:      "Last temperature reading.",
		}),
		humidity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "humidity_percent",
			Help:      "Last relative humidity reading.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.events,
		m.levels,
		m.readErrors,
		m.dropped,
		m.temperature,
		m.humidity,
	)

	return m
}

// Registry returns the registry the bridge metrics are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Event counts one delivery attempt for sensor.
func (m *Metrics) Event(sensor, result string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(sensor, result).Inc()
}

// Level records the observed level of a digital input.
func (m *Metrics) Level(sensor string, level int) {
	if m == nil {
		return
	}
	m.levels.WithLabelValues(sensor).Set(float64(level))
}

// ReadError counts a failed sensor read.
func (m *Metrics) ReadError() {
	if m == nil {
		return
	}
	m.readErrors.Inc()
}

// Climate records the last temperature and humidity.
func (m *Metrics) Climate(temperature, humidity float64) {
	if m == nil {
		return
	}
	m.temperature.Set(temperature)
	m.humidity.Set(humidity)
}
