package dht

// FakeSensor is a test double that returns scripted readings.
type FakeSensor struct {
	// Results contains scripted outcomes. Each call to Read() consumes the next one.
	// If results are exhausted, the last one is returned repeatedly.
	Results []Result

	// Calls counts Read() invocations.
	Calls int

	index int
}

// Result is one scripted Read() outcome.
type Result struct {
	Reading Reading
	Err     error
}

// NewFakeSensor creates a FakeSensor with the given results.
func NewFakeSensor(results ...Result) *FakeSensor {
	return &FakeSensor{Results: results}
}

// Read returns the next scripted result.
func (f *FakeSensor) Read() (Reading, error) {
	f.Calls++
	if len(f.Results) == 0 {
		return Reading{}, ErrNoData
	}
	r := f.Results[f.index]
	if f.index < len(f.Results)-1 {
		f.index++
	}
	return r.Reading, r.Err
}
