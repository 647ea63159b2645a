//go:build !linux

package gpio

import (
	"errors"

	"github.com/charmbracelet/log"
)

// RealWatcher is not available on non-Linux platforms.
type RealWatcher struct{}

// NewRealWatcher returns an error on non-Linux platforms.
func NewRealWatcher(chipName string, bindings []Binding, logger *log.Logger) (*RealWatcher, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Edges returns nil on non-Linux platforms.
func (w *RealWatcher) Edges() <-chan Edge {
	return nil
}

// Dropped always returns 0 on non-Linux platforms.
func (w *RealWatcher) Dropped() uint64 {
	return 0
}

// Level is not implemented on non-Linux platforms.
func (w *RealWatcher) Level(pin int) (int, error) {
	return 0, errors.New("gpio: not supported")
}

// Close is not implemented on non-Linux platforms.
func (w *RealWatcher) Close() error {
	return nil
}
