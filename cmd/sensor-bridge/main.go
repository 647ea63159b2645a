// Command sensor-bridge watches a GPIO sensor and posts state changes to an HTTP endpoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/sweeney/sensor-bridge/internal/bridge"
	"github.com/sweeney/sensor-bridge/internal/dht"
	"github.com/sweeney/sensor-bridge/internal/gpio"
	"github.com/sweeney/sensor-bridge/internal/metrics"
	"github.com/sweeney/sensor-bridge/internal/mqtt"
	"github.com/sweeney/sensor-bridge/internal/post"
	"github.com/sweeney/sensor-bridge/internal/status"
	"github.com/sweeney/sensor-bridge/internal/web"
)

type options struct {
	sensor     string
	baseURL    string
	name       string
	chip       string
	iioDir     string
	poll       time.Duration
	broker     string
	clientID   string
	heartbeat  time.Duration
	httpAddr   string
	printState bool
	level      string
}

func main() {
	var opts options
	pflag.StringVarP(&opts.sensor, "sensor", "s", "", "Sensor to bridge: "+strings.Join(bridge.VariantNames(), ", "))
	pflag.StringVar(&opts.baseURL, "base-url", post.DefaultBaseURL, "Endpoint base URL; the sensor name is appended")
	pflag.StringVar(&opts.name, "name", "", "Endpoint name (prefix for indexed sensors); empty uses the sensor default")
	pflag.StringVar(&opts.chip, "chip", "gpiochip0", "GPIO character device")
	pflag.StringVar(&opts.iioDir, "iio-device", "", "DHT11 IIO device directory (empty to search "+dht.IIORoot+")")
	pflag.DurationVar(&opts.poll, "poll", time.Second, "Poll interval for polled sensors")
	pflag.StringVar(&opts.broker, "mqtt-broker", "", "MQTT broker to mirror events to (empty to disable)")
	pflag.StringVar(&opts.clientID, "mqtt-client-id", "sensor-bridge", "MQTT client ID")
	pflag.DurationVar(&opts.heartbeat, "heartbeat", 15*time.Minute, "Heartbeat interval on the MQTT mirror (0 to disable)")
	pflag.StringVar(&opts.httpAddr, "http", ":8081", "HTTP status address (empty to disable)")
	pflag.BoolVar(&opts.printState, "print-state", false, "Print current reading and exit")
	pflag.StringVar(&opts.level, "level", "info", "Log level (debug, info, warn, error)")
	pflag.Parse()

	logger := log.NewWithOptions(os.Stderr, log.Options{ReportTimestamp: true})
	lvl, err := log.ParseLevel(opts.level)
	if err != nil {
		logger.Fatal("failed to parse log level", "level", opts.level, "err", err)
	}
	logger.SetLevel(lvl)
	log.SetDefault(logger)

	if err := run(opts, logger); err != nil {
		logger.Fatalf("fatal: %v", err)
	}
}

func run(opts options, logger *log.Logger) error {
	variant, err := bridge.Lookup(opts.sensor)
	if err != nil {
		return err
	}
	sender := post.NewHTTPSender(opts.baseURL)

	// Claim hardware first; a failure here is fatal with nothing else started.
	var (
		watcher gpio.Watcher
		sensor  dht.Sensor
	)
	if variant.Climate {
		s, err := openClimate(opts.iioDir)
		if err != nil {
			return err
		}
		logger.Infof("dht11: reading %s", s.Dir())
		sensor = s
	} else {
		w, err := gpio.NewRealWatcher(opts.chip, variant.Bindings(), logger)
		if err != nil {
			return fmt.Errorf("init gpio: %w", err)
		}
		watcher = w
		defer watcher.Close()
	}

	// Print state mode
	if opts.printState {
		br, err := newBridge(variant, opts, watcher, sensor, sender)
		if err != nil {
			return err
		}
		defer br.Close()
		return br.PrintState(context.Background(), os.Stdout)
	}

	var dropped func() uint64
	if watcher != nil {
		dropped = watcher.Dropped
	}
	m := metrics.New(dropped)

	tracker := status.NewTracker(time.Now(), statusConfig(variant, opts))

	bridgeOpts := []bridge.Option{
		bridge.WithTracker(tracker),
		bridge.WithMetrics(m),
		bridge.WithLogger(logger),
	}

	// The mirror is optional; the bridge runs without it if the broker is down.
	if opts.broker != "" {
		publisher, err := mqtt.NewRealPublisher(opts.broker, opts.clientID)
		if err != nil {
			logger.Warnf("mqtt mirror disabled: %v", err)
		} else {
			defer publisher.Close()
			bridgeOpts = append(bridgeOpts, bridge.WithMirror(publisher))
			logger.Infof("mirroring events to %s", opts.broker)
		}
	}

	br, err := newBridge(variant, opts, watcher, sensor, sender, bridgeOpts...)
	if err != nil {
		return err
	}
	defer br.Close()

	br.PublishSystem("STARTUP", "", true)

	// Start HTTP status server
	if opts.httpAddr != "" {
		srv := web.New(opts.httpAddr, tracker, m.Handler(), logger)
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("http server error: %v", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				logger.Debugf("http server shutdown: %v", err)
			}
		}()
		logger.Infof("http status server listening on %s", opts.httpAddr)
	}

	var edges <-chan gpio.Edge
	var poll <-chan time.Time
	if watcher != nil {
		edges = watcher.Edges()
		for _, b := range variant.Bindings() {
			logger.Infof("watching %s", b)
		}
	} else {
		ticker := time.NewTicker(opts.poll)
		defer ticker.Stop()
		poll = ticker.C
	}

	var heartbeat <-chan time.Time
	if opts.heartbeat > 0 {
		ticker := time.NewTicker(opts.heartbeat)
		defer ticker.Stop()
		heartbeat = ticker.C
	}

	logger.Infof("started: sensor=%s endpoint=%s policy=%s heartbeat=%v", variant.Name, opts.baseURL, variant.Policy, opts.heartbeat)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runLoop(context.Background(), br, logger, edges, poll, heartbeat, sigCh)
}

func openClimate(dir string) (*dht.IIOSensor, error) {
	if dir == "" {
		found, err := dht.FindIIODevice(dht.IIORoot)
		if err != nil {
			return nil, fmt.Errorf("init dht11: %w", err)
		}
		dir = found
	}
	s, err := dht.NewIIOSensor(dir)
	if err != nil {
		return nil, fmt.Errorf("init dht11: %w", err)
	}
	return s, nil
}

func newBridge(v bridge.Variant, opts options, w gpio.Watcher, s dht.Sensor, sender post.Sender, bopts ...bridge.Option) (*bridge.Bridge, error) {
	if v.Climate {
		name := opts.name
		if name == "" {
			name = v.Endpoint
		}
		return bridge.NewClimate(s, name, dht.DefaultAttempts, dht.DefaultDelay, sender, bopts...), nil
	}
	return bridge.NewDigital(w, v.Inputs(opts.name), v.Policy, sender, bopts...)
}

func statusConfig(v bridge.Variant, opts options) status.Config {
	cfg := status.Config{
		Sensor:      v.Name,
		BaseURL:     opts.baseURL,
		Pins:        v.Pins,
		Policy:      v.Policy.String(),
		DebounceMs:  v.Debounce.Milliseconds(),
		HeartbeatMs: opts.heartbeat.Milliseconds(),
		Broker:      opts.broker,
		HTTPAddr:    opts.httpAddr,
	}
	if v.Climate {
		cfg.PollMs = opts.poll.Milliseconds()
	}
	return cfg
}

// runLoop feeds edges and poll ticks to the bridge until a signal arrives
// or ctx is cancelled. In-flight sends are cancelled with the loop. Pins are
// released before it returns.
func runLoop(ctx context.Context, br *bridge.Bridge, logger *log.Logger, edges <-chan gpio.Edge, poll, heartbeat <-chan time.Time, sig <-chan os.Signal) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer br.Close()

	var reason atomic.Value
	go func() {
		select {
		case s := <-sig:
			reason.Store(signalName(s))
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ctx.Done():
			r, ok := reason.Load().(string)
			if !ok {
				r = "CANCELLED"
			}
			logger.Infof("received %s, shutting down", r)
			br.PublishSystem("SHUTDOWN", r, true)
			return nil

		// Edges and ticks that race with cancellation are dropped.
		case e := <-edges:
			if ctx.Err() != nil {
				continue
			}
			br.HandleEdge(ctx, e)
			br.RefreshStatus()

		case <-poll:
			if ctx.Err() != nil {
				continue
			}
			br.Poll(ctx)
			br.RefreshStatus()

		case <-heartbeat:
			br.PublishSystem("HEARTBEAT", "", false)
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
