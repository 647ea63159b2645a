// Package gpio provides GPIO input reading and edge subscription with hardware abstraction.
// The real implementation uses the Linux GPIO character device.
// The fake implementation allows testing without hardware.
package gpio

import (
	"fmt"
	"time"
)

// Watcher delivers edges for a set of bound input pins.
type Watcher interface {
	// Edges returns the channel edges are delivered on. The channel is
	// bounded; edges arriving while it is full are dropped. It is never closed.
	Edges() <-chan Edge

	// Level reads the current raw value (0 or 1) of a bound pin.
	Level(pin int) (int, error)

	// Dropped returns how many edges were dropped because the channel was full.
	Dropped() uint64

	// Close releases all claimed lines. Safe to call more than once.
	Close() error
}

// EventBuffer is the capacity of the edge channel.
const EventBuffer = 16

// Bias selects the pull resistor of an input.
type Bias int

const (
	BiasNone Bias = iota
	BiasPullUp
	BiasPullDown
)

func (b Bias) String() string {
	switch b {
	case BiasPullUp:
		return "pull-up"
	case BiasPullDown:
		return "pull-down"
	default:
		return "none"
	}
}

// EdgeType selects which transitions are reported.
type EdgeType int

const (
	EdgeNone EdgeType = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

func (e EdgeType) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	case EdgeBoth:
		return "both"
	default:
		return "none"
	}
}

// Binding describes how one input pin is claimed. Pins use physical header
// (board) numbering.
type Binding struct {
	Pin      int
	Bias     Bias
	Edge     EdgeType
	Debounce time.Duration
}

func (b Binding) String() string {
	return fmt.Sprintf("pin %d (bias=%s edge=%s debounce=%v)", b.Pin, b.Bias, b.Edge, b.Debounce)
}

// Edge is a single transition reported by a Watcher.
type Edge struct {
	Pin  int      // board pin number
	Type EdgeType // EdgeRising or EdgeFalling
	Time time.Time
}

// boardToBCM maps 40-pin header positions to BCM GPIO numbers.
var boardToBCM = map[int]int{
	3: 2, 5: 3, 7: 4, 8: 14, 10: 15, 11: 17, 12: 18, 13: 27,
	15: 22, 16: 23, 18: 24, 19: 10, 21: 9, 22: 25, 23: 11, 24: 8,
	26: 7, 27: 0, 28: 1, 29: 5, 31: 6, 32: 12, 33: 13, 35: 19,
	36: 16, 37: 26, 38: 20, 40: 21,
}

// BCM returns the BCM line offset for a board pin.
// Power and ground positions return an error.
func BCM(boardPin int) (int, error) {
	offset, ok := boardToBCM[boardPin]
	if !ok {
		return 0, fmt.Errorf("board pin %d is not a GPIO", boardPin)
	}
	return offset, nil
}

// push delivers e without blocking. Returns false if ch is full.
func push(ch chan Edge, e Edge) bool {
	select {
	case ch <- e:
		return true
	default:
		return false
	}
}
