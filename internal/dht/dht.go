// Package dht reads DHT11 temperature/humidity sensors.
// The single-wire protocol is timed by the kernel dht11 driver; this package
// reads its IIO channels and retries failed reads the way the sensor requires.
package dht

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNoData is returned when the sensor produced no valid reading.
var ErrNoData = errors.New("dht: no data")

// Default retry settings for ReadRetry.
const (
	DefaultAttempts = 15
	DefaultDelay    = 2 * time.Second
)

// Reading is a single successful measurement.
type Reading struct {
	Humidity    float64 // percent relative humidity
	Temperature float64 // degrees Celsius
}

// Sensor reads one measurement per call.
type Sensor interface {
	Read() (Reading, error)
}

// Validate rejects readings outside the DHT11 operating range, which the
// driver occasionally produces on a corrupted frame.
func (r Reading) Validate() error {
	if r.Humidity < 0 || r.Humidity > 100 {
		return fmt.Errorf("%w: humidity %.1f out of range", ErrNoData, r.Humidity)
	}
	if r.Temperature < -40 || r.Temperature > 80 {
		return fmt.Errorf("%w: temperature %.1f out of range", ErrNoData, r.Temperature)
	}
	return nil
}

// ReadRetry reads s up to attempts times, waiting delay between failures.
// It returns the last error if every attempt fails, or ctx.Err() if the
// context is cancelled while waiting.
func ReadRetry(ctx context.Context, s Sensor, attempts int, delay time.Duration) (Reading, error) {
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		r, err := s.Read()
		if err == nil {
			err = r.Validate()
		}
		if err == nil {
			return r, nil
		}
		lastErr = err

		if i == attempts-1 {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Reading{}, ctx.Err()
		case <-timer.C:
		}
	}
	return Reading{}, fmt.Errorf("after %d attempts: %w", attempts, lastErr)
}
