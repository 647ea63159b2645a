package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestEventCounts(t *testing.T) {
	m := New(nil)

	m.Event("button2", ResultSent)
	m.Event("button2", ResultSent)
	m.Event("button2", ResultUnreachable)

	if got := testutil.ToFloat64(m.events.WithLabelValues("button2", ResultSent)); got != 2 {
		t.Errorf("sent: got %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.events.WithLabelValues("button2", ResultUnreachable)); got != 1 {
		t.Errorf("unreachable: got %v, want 1", got)
	}
}

func TestLevelAndClimate(t *testing.T) {
	m := New(nil)

	m.Level("photo1", 1)
	m.Climate(22.5, 45)

	if got := testutil.ToFloat64(m.levels.WithLabelValues("photo1")); got != 1 {
		t.Errorf("level: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.temperature); got != 22.5 {
		t.Errorf("temperature: got %v, want 22.5", got)
	}
	if got := testutil.ToFloat64(m.humidity); got != 45 {
		t.Errorf("humidity: got %v, want 45", got)
	}
}

func TestReadErrorsAndDropped(t *testing.T) {
	var dropped uint64 = 3
	m := New(func() uint64 { return dropped })

	m.ReadError()

	if got := testutil.ToFloat64(m.readErrors); got != 1 {
		t.Errorf("read errors: got %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.dropped); got != 3 {
		t.Errorf("dropped: got %v, want 3", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Event("x", ResultSent)
	m.Level("x", 1)
	m.ReadError()
	m.Climate(1, 2)
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New(nil)
	m.Event("photo1", ResultFailed)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	want := `sensor_bridge_events_total{result="failed",sensor="photo1"} 1`
	if !strings.Contains(string(body), want) {
		t.Errorf("expected %q in output, got:\n%s", want, body)
	}
}

func TestSeparateRegistries(t *testing.T) {
	// Two instances must not collide on registration.
	New(nil)
	New(nil)
}
