package peripheral

import (
	"fmt"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// Info describes one registered peripheral for status reporting.
type Info struct {
	Name     string         `json:"name"`
	Kind     string         `json:"kind"`
	Simulate bool           `json:"simulate"`
	Pins     map[string]int `json:"pins"`
	Methods  []string       `json:"methods"`
}

// Registry maps peripheral names to drivers.
//
// It is built once from configuration and never changes afterwards, so
// lookups need no locking; drivers serialise their own calls.
type Registry struct {
	drivers map[string]Driver
	pins    map[string]map[string]int
	infos   []Info
}

// NewRegistry builds a driver for every configured peripheral.
//
// Parameters:
//   - cfgs: Peripheral declarations from config.yaml
//   - backend: Pin backend shared by all non-simulated drivers
//
// Returns:
//   - *Registry: Ready registry
//   - error: ErrUnknownKind, ErrMissingPin, ErrInvalidOption or a duplicate name
func NewRegistry(cfgs []config.PeripheralConfig, backend PinBackend) (*Registry, error) {
	r := &Registry{
		drivers: make(map[string]Driver, len(cfgs)),
		pins:    make(map[string]map[string]int, len(cfgs)),
		infos:   make([]Info, 0, len(cfgs)),
	}

	for _, pc := range cfgs {
		if _, dup := r.drivers[pc.Name]; dup {
			return nil, fmt.Errorf("peripheral %q declared twice", pc.Name)
		}
		build, ok := constructors[pc.Kind]
		if !ok {
			return nil, fmt.Errorf("%w: %q (peripheral %q)", ErrUnknownKind, pc.Kind, pc.Name)
		}

		pins := copyPins(pc.Pins)
		d, err := build(Spec{
			Name:     pc.Name,
			Kind:     pc.Kind,
			Pins:     pins,
			Simulate: pc.Simulate,
			Options:  pc.Options,
			Backend:  backend,
		})
		if err != nil {
			return nil, fmt.Errorf("building peripheral %q: %w", pc.Name, err)
		}

		r.drivers[pc.Name] = d
		r.pins[pc.Name] = pins
		r.infos = append(r.infos, Info{
			Name:     pc.Name,
			Kind:     pc.Kind,
			Simulate: pc.Simulate,
			Pins:     pins,
			Methods:  d.Methods(),
		})
	}

	return r, nil
}

// Invoke runs a peripheral method and returns its full {param → value} result.
//
// Returns ErrUnknownPeripheral or ErrUnknownMethod (wrapped) when the
// address does not exist; driver errors are returned as-is.
func (r *Registry) Invoke(peripheral, method string, args map[string]any) (map[string]any, error) {
	d, ok := r.drivers[peripheral]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPeripheral, peripheral)
	}
	return d.Invoke(method, args)
}

// Lookup returns the value at [peripheral][method][param].
//
// The method is executed to produce the value, so looking up an actuator
// method such as relay.on switches the relay.
func (r *Registry) Lookup(peripheral, method, param string) (any, error) {
	values, err := r.Invoke(peripheral, method, nil)
	if err != nil {
		return nil, err
	}
	v, ok := values[param]
	if !ok {
		return nil, fmt.Errorf("%w: %s.%s has no %q", ErrUnknownParam, peripheral, method, param)
	}
	return v, nil
}

// Pins returns the static pin configuration, {peripheral → {pin name → GPIO}}.
// Peripherals with fixed pins report an empty map. The result is a copy.
func (r *Registry) Pins() map[string]map[string]int {
	out := make(map[string]map[string]int, len(r.pins))
	for name, pins := range r.pins {
		out[name] = copyPins(pins)
	}
	return out
}

// Describe lists peripherals in configuration order.
func (r *Registry) Describe() []Info {
	out := make([]Info, len(r.infos))
	for i, info := range r.infos {
		info.Pins = copyPins(info.Pins)
		info.Methods = append([]string(nil), info.Methods...)
		out[i] = info
	}
	return out
}

// Has reports whether a peripheral is registered.
func (r *Registry) Has(peripheral string) bool {
	_, ok := r.drivers[peripheral]
	return ok
}

// Len returns the number of registered peripherals.
func (r *Registry) Len() int {
	return len(r.drivers)
}

func copyPins(pins map[string]int) map[string]int {
	out := make(map[string]int, len(pins))
	for k, v := range pins {
		out[k] = v
	}
	return out
}
