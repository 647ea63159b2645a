package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sweeney/sensor-bridge/internal/logic"
	"github.com/sweeney/sensor-bridge/internal/metrics"
	"github.com/sweeney/sensor-bridge/internal/status"
)

func newTestServer(t *testing.T) (*httptest.Server, *status.Tracker, *metrics.Metrics) {
	t.Helper()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cfg := status.Config{
		Sensor:      "buttons",
		BaseURL:     "http://nicopi.local:8080/sensor/",
		Pins:        []int{15, 13, 12, 11},
		Policy:      "rising",
		DebounceMs:  200,
		HeartbeatMs: 900000,
		Broker:      "tcp://192.168.1.200:1883",
		HTTPAddr:    ":8081",
	}
	tr := status.NewTracker(start, cfg)
	for i := 0; i < 4; i++ {
		name := "button" + string(rune('0'+i))
		tr.Register(name, cfg.BaseURL+name, logic.KindState)
	}
	m := metrics.New(nil)
	srv := New(":0", tr, m.Handler(), nil)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, tr, m
}

func getJSON(t *testing.T, url string) status.StatusJSON {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return sj
}

func TestJSONEndpoint(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Observe("button2", logic.KindState, logic.High, logic.ClimateUnknown, time.Now())
	tr.Count(func(c *logic.Counts) { c.Sent = 5; c.Unreachable = 2 })
	tr.SetMQTTConnected(true)

	resp, err := http.Get(ts.URL + "/index.json")
	if err != nil {
		t.Fatalf("GET /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type: got %q, want application/json", ct)
	}

	var sj status.StatusJSON
	if err := json.NewDecoder(resp.Body).Decode(&sj); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}

	if len(sj.Status.Sensors) != 4 {
		t.Fatalf("sensors: got %d, want 4", len(sj.Status.Sensors))
	}
	b2 := sj.Status.Sensors[2]
	if b2.Name != "button2" {
		t.Errorf("sensor[2]: got %q, want button2", b2.Name)
	}
	if b2.State == nil || *b2.State != 1 {
		t.Errorf("button2 state: got %v, want 1", b2.State)
	}
	if b2.Endpoint != "http://nicopi.local:8080/sensor/button2" {
		t.Errorf("button2 endpoint: got %q", b2.Endpoint)
	}
	if sj.Status.Ready {
		t.Error("expected Ready=false while other buttons are unread")
	}
	if !sj.Status.MQTT.Connected {
		t.Error("expected MQTT.Connected=true")
	}
	if sj.Status.Counts.Sent != 5 {
		t.Errorf("Counts.Sent: got %d, want 5", sj.Status.Counts.Sent)
	}
	if sj.Status.Counts.Unreachable != 2 {
		t.Errorf("Counts.Unreachable: got %d, want 2", sj.Status.Counts.Unreachable)
	}
	if sj.Status.Config.DebounceMs != 200 {
		t.Errorf("Config.DebounceMs: got %d, want 200", sj.Status.Config.DebounceMs)
	}
}

func TestHTMLEndpointRoot(t *testing.T) {
	ts, tr, _ := newTestServer(t)
	tr.Observe("button2", logic.KindState, logic.High, logic.ClimateUnknown, time.Now())

	resp, err := http.Get(ts.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type: got %q, want text/html", ct)
	}

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "button2") {
		t.Error("expected button2 in status page")
	}
	if !strings.Contains(string(body), `class="high"`) {
		t.Error("expected high level rendered for button2")
	}
}

func TestHTMLEndpointIndexHTML(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/index.html")
	if err != nil {
		t.Fatalf("GET /index.html: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 200 {
		t.Errorf("status: got %d, want 200", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	ts, _, m := newTestServer(t)
	m.Event("button2", metrics.ResultSent)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `sensor_bridge_events_total{result="sent",sensor="button2"} 1`) {
		t.Errorf("expected event counter in metrics output, got:\n%s", body)
	}
}

func TestNotFoundForUnknownPath(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/nonexistent")
	if err != nil {
		t.Fatalf("GET /nonexistent: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != 404 {
		t.Errorf("status: got %d, want 404", resp.StatusCode)
	}
}

func TestPostNotAllowed(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/index.json", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("POST /index.json: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", resp.StatusCode)
	}
}

func TestStateChangesReflectedInResponse(t *testing.T) {
	ts, tr, _ := newTestServer(t)

	sj1 := getJSON(t, ts.URL+"/index.json")
	if sj1.Status.Ready {
		t.Error("expected Ready=false initially")
	}

	now := time.Now()
	for i := 0; i < 4; i++ {
		tr.Observe("button"+string(rune('0'+i)), logic.KindState, logic.Low, logic.ClimateUnknown, now)
	}
	tr.SetMQTTConnected(true)

	sj2 := getJSON(t, ts.URL+"/index.json")
	if !sj2.Status.Ready {
		t.Error("expected Ready=true after every button reported")
	}
	if s := sj2.Status.Sensors[0].State; s == nil || *s != 0 {
		t.Errorf("button0 state: got %v, want 0", s)
	}
	if !sj2.Status.MQTT.Connected {
		t.Error("expected MQTT connected after update")
	}
}
