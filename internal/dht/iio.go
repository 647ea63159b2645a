package dht

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// IIORoot is where the kernel exposes IIO devices.
const IIORoot = "/sys/bus/iio/devices"

// Channel files written by the dht11 driver, in milli-units.
const (
	fileName        = "name"
	fileTemperature = "in_temp_input"
	fileHumidity    = "in_humidityrelative_input"
)

// IIOSensor reads a DHT11 through the Linux dht11 IIO driver
// (dtoverlay=dht11,gpiopin=4).
type IIOSensor struct {
	dir string
}

// NewIIOSensor validates that dir is a dht11 IIO device.
func NewIIOSensor(dir string) (*IIOSensor, error) {
	name, err := os.ReadFile(filepath.Join(dir, fileName))
	if err != nil {
		return nil, fmt.Errorf("open iio device: %w", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(name)), "dht11") {
		return nil, fmt.Errorf("iio device %s is %q, not dht11", dir, strings.TrimSpace(string(name)))
	}
	return &IIOSensor{dir: dir}, nil
}

// FindIIODevice returns the first dht11 device below root.
func FindIIODevice(root string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(root, "iio:device*"))
	if err != nil {
		return "", err
	}
	for _, dir := range matches {
		name, err := os.ReadFile(filepath.Join(dir, fileName))
		if err != nil {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(string(name)), "dht11") {
			return dir, nil
		}
	}
	return "", fmt.Errorf("no dht11 device under %s", root)
}

// Dir returns the device directory.
func (s *IIOSensor) Dir() string {
	return s.dir
}

// Read performs one measurement. The driver returns EIO or ETIMEDOUT when
// the sensor frame was missed or failed its checksum; those map to ErrNoData.
func (s *IIOSensor) Read() (Reading, error) {
	// Reading humidity first triggers a fresh measurement; the temperature
	// read that follows is served from the same frame.
	h, err := s.readMilli(fileHumidity)
	if err != nil {
		return Reading{}, err
	}
	t, err := s.readMilli(fileTemperature)
	if err != nil {
		return Reading{}, err
	}
	return Reading{Humidity: h, Temperature: t}, nil
}

func (s *IIOSensor) readMilli(file string) (float64, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, file))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("read %s: %w", file, err)
		}
		return 0, fmt.Errorf("%w: read %s: %v", ErrNoData, file, err)
	}
	v, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %v", ErrNoData, file, err)
	}
	return float64(v) / 1000, nil
}
