//go:build linux

package gpio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/warthog618/go-gpiocdev"
	"golang.org/x/time/rate"
)

// Consumer is the label shown for claimed lines in gpioinfo.
const Consumer = "sensor-bridge"

// RealWatcher watches GPIO lines on actual hardware using the Linux GPIO character device.
// Edge handlers run on goroutines owned by gpiocdev and only push onto the edge channel.
type RealWatcher struct {
	chip    *gpiocdev.Chip
	lines   map[int]*gpiocdev.Line // by board pin
	pins    map[int]int            // line offset -> board pin
	events  chan Edge
	logger  *log.Logger
	dropped atomic.Uint64
	warn    rate.Sometimes

	closeOnce sync.Once
	closeErr  error
}

// NewRealWatcher opens chipName and requests every binding as an input.
// On any failure lines already requested are released.
func NewRealWatcher(chipName string, bindings []Binding, logger *log.Logger) (*RealWatcher, error) {
	if logger == nil {
		logger = log.Default()
	}

	chip, err := gpiocdev.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("open gpio chip: %w", err)
	}

	w := &RealWatcher{
		chip:   chip,
		lines:  make(map[int]*gpiocdev.Line, len(bindings)),
		pins:   make(map[int]int, len(bindings)),
		events: make(chan Edge, EventBuffer),
		logger: logger,
		warn:   rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}

	// pins is read by handlers, so it is complete before the first request.
	offsets := make([]int, len(bindings))
	for i, b := range bindings {
		offset, err := BCM(b.Pin)
		if err != nil {
			w.Close()
			return nil, err
		}
		offsets[i] = offset
		w.pins[offset] = b.Pin
	}

	for i, b := range bindings {
		line, err := chip.RequestLine(offsets[i], w.lineOptions(b)...)
		if err != nil {
			w.Close()
			return nil, fmt.Errorf("request %s: %w", b, err)
		}
		w.lines[b.Pin] = line
	}

	return w, nil
}

func (w *RealWatcher) lineOptions(b Binding) []gpiocdev.LineReqOption {
	opts := []gpiocdev.LineReqOption{gpiocdev.AsInput, gpiocdev.WithConsumer(Consumer)}

	switch b.Bias {
	case BiasPullUp:
		opts = append(opts, gpiocdev.WithPullUp)
	case BiasPullDown:
		opts = append(opts, gpiocdev.WithPullDown)
	default:
		opts = append(opts, gpiocdev.WithBiasDisabled)
	}

	switch b.Edge {
	case EdgeRising:
		opts = append(opts, gpiocdev.WithRisingEdge)
	case EdgeFalling:
		opts = append(opts, gpiocdev.WithFallingEdge)
	case EdgeBoth:
		opts = append(opts, gpiocdev.WithBothEdges)
	}

	if b.Edge != EdgeNone {
		opts = append(opts, gpiocdev.WithEventHandler(w.handle))
		if b.Debounce > 0 {
			opts = append(opts, gpiocdev.WithDebounce(b.Debounce))
		}
	}
	return opts
}

// handle runs on the gpiocdev watcher goroutine.
func (w *RealWatcher) handle(evt gpiocdev.LineEvent) {
	e := Edge{
		Pin:  w.pins[evt.Offset],
		Type: EdgeFalling,
		Time: time.Now(),
	}
	if evt.Type == gpiocdev.LineEventRisingEdge {
		e.Type = EdgeRising
	}
	if !push(w.events, e) {
		n := w.dropped.Add(1)
		w.warn.Do(func() {
			w.logger.Warnf("gpio: edge channel full, dropped %d edge(s) so far (last on pin %d)", n, e.Pin)
		})
	}
}

// Edges returns the edge channel.
func (w *RealWatcher) Edges() <-chan Edge {
	return w.events
}

// Dropped returns the number of edges dropped because the channel was full.
func (w *RealWatcher) Dropped() uint64 {
	return w.dropped.Load()
}

// Level reads the current raw value of a bound pin.
func (w *RealWatcher) Level(pin int) (int, error) {
	line, ok := w.lines[pin]
	if !ok {
		return 0, fmt.Errorf("pin %d is not bound", pin)
	}
	v, err := line.Value()
	if err != nil {
		return 0, fmt.Errorf("read pin %d: %w", pin, err)
	}
	return v, nil
}

// Close releases GPIO resources exactly once.
// Lines are reconfigured to plain inputs with bias disabled before release,
// leaving the header as it was before the bridge started.
func (w *RealWatcher) Close() error {
	w.closeOnce.Do(func() {
		var errs []error
		for pin, line := range w.lines {
			if err := line.Reconfigure(gpiocdev.AsInput, gpiocdev.WithBiasDisabled); err != nil {
				errs = append(errs, fmt.Errorf("reconfigure pin %d: %w", pin, err))
			}
			if err := line.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close pin %d: %w", pin, err))
			}
		}
		if w.chip != nil {
			if err := w.chip.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close chip: %w", err))
			}
		}
		if len(errs) > 0 {
			w.closeErr = fmt.Errorf("close errors: %v", errs)
		}
	})
	return w.closeErr
}
