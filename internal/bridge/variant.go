package bridge

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/sweeney/sensor-bridge/internal/gpio"
	"github.com/sweeney/sensor-bridge/internal/logic"
)

// Variant describes one supported sensor wiring.
type Variant struct {
	Name     string
	Pins     []int // board numbering; empty for the climate sensor
	Bias     gpio.Bias
	Edge     gpio.EdgeType
	Debounce time.Duration
	Policy   logic.Policy
	Endpoint string // endpoint name, or the prefix when Indexed
	Indexed  bool   // one endpoint per pin: Endpoint + position in Pins
	Climate  bool
}

// Variants lists the supported --sensor values.
var Variants = map[string]Variant{
	"button": {
		Name:     "button",
		Pins:     []int{11},
		Bias:     gpio.BiasNone,
		Edge:     gpio.EdgeBoth,
		Policy:   logic.ForwardChanges,
		Endpoint: "button1",
	},
	"photo": {
		Name:     "photo",
		Pins:     []int{13},
		Bias:     gpio.BiasNone,
		Edge:     gpio.EdgeBoth,
		Policy:   logic.ForwardChanges,
		Endpoint: "photo1",
	},
	"buttons": {
		Name:     "buttons",
		Pins:     []int{15, 13, 12, 11},
		Bias:     gpio.BiasPullUp,
		Edge:     gpio.EdgeRising,
		Debounce: 200 * time.Millisecond,
		Policy:   logic.ForwardRising,
		Endpoint: "button",
		Indexed:  true,
	},
	"dht11": {
		Name:     "dht11",
		Policy:   logic.ForwardChanges,
		Endpoint: "dht11",
		Climate:  true,
	},
}

// VariantNames returns the supported variant names, sorted.
func VariantNames() []string {
	names := make([]string, 0, len(Variants))
	for n := range Variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named variant.
func Lookup(name string) (Variant, error) {
	v, ok := Variants[name]
	if !ok {
		return Variant{}, fmt.Errorf("unknown sensor %q (want one of %v)", name, VariantNames())
	}
	return v, nil
}

// Inputs returns the endpoint name of every pin. A non-empty endpoint
// replaces the variant's default name (or prefix, when indexed).
func (v Variant) Inputs(endpoint string) []Input {
	if endpoint == "" {
		endpoint = v.Endpoint
	}
	inputs := make([]Input, len(v.Pins))
	for i, pin := range v.Pins {
		name := endpoint
		if v.Indexed {
			name = endpoint + strconv.Itoa(i)
		}
		inputs[i] = Input{Pin: pin, Name: name}
	}
	return inputs
}

// Bindings returns how each pin is claimed.
func (v Variant) Bindings() []gpio.Binding {
	bindings := make([]gpio.Binding, len(v.Pins))
	for i, pin := range v.Pins {
		bindings[i] = gpio.Binding{Pin: pin, Bias: v.Bias, Edge: v.Edge, Debounce: v.Debounce}
	}
	return bindings
}
