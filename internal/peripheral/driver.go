package peripheral

import (
	"fmt"
	"sort"
	"sync"
)

// Driver kinds.
const (
	KindLED           = "led"
	KindInternalLED   = "internal_led"
	KindRelay         = "relay"
	KindServo         = "servo_motor"
	KindDHT           = "dht_sensor"
	KindGas           = "gas_sensor"
	KindMotion        = "motion_sensor"
	KindPushButton    = "push_button"
	KindSlideSwitch   = "slide_switch"
	KindEncoder       = "encoder"
	KindAccelerometer = "accelerometer"
)

// Driver is a peripheral exposing named methods.
//
// Invoke runs one method and returns its {param → value} result.
// Implementations must be safe for concurrent use.
type Driver interface {
	Kind() string
	Methods() []string
	Invoke(method string, args map[string]any) (map[string]any, error)
}

// Spec is everything a constructor needs to build a driver.
type Spec struct {
	Name     string
	Kind     string
	Pins     map[string]int
	Simulate bool
	Options  map[string]any
	Backend  PinBackend
}

// constructor builds a driver from its spec.
type constructor func(spec Spec) (Driver, error)

// constructors maps each kind to its constructor.
var constructors = map[string]constructor{
	KindLED:           newLED,
	KindInternalLED:   newInternalLED,
	KindRelay:         newRelay,
	KindServo:         newServo,
	KindDHT:           newDHT,
	KindGas:           newGasSensor,
	KindMotion:        newMotionSensor,
	KindPushButton:    newPushButton,
	KindSlideSwitch:   newSlideSwitch,
	KindEncoder:       newEncoder,
	KindAccelerometer: newAccelerometer,
}

// Kinds returns every supported driver kind, sorted.
func Kinds() []string {
	kinds := make([]string, 0, len(constructors))
	for k := range constructors {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// method is one driver operation. It runs with the driver lock held.
type method func(args map[string]any) (map[string]any, error)

// baseDriver dispatches method names and serialises calls.
type baseDriver struct {
	kind    string
	mu      sync.Mutex
	methods map[string]method
	names   []string
}

func newBaseDriver(kind string) *baseDriver {
	return &baseDriver{kind: kind, methods: make(map[string]method)}
}

// handle registers a method; registration order is the order Methods reports.
func (d *baseDriver) handle(name string, m method) {
	d.methods[name] = m
	d.names = append(d.names, name)
}

func (d *baseDriver) Kind() string { return d.kind }

func (d *baseDriver) Methods() []string {
	return append([]string(nil), d.names...)
}

func (d *baseDriver) Invoke(name string, args map[string]any) (map[string]any, error) {
	m, ok := d.methods[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no method %q", ErrUnknownMethod, d.kind, name)
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return m(args)
}

// =============================================================================
// Spec helpers
// =============================================================================

// pin returns the first configured pin among names, or def when def >= 0.
func (s Spec) pin(def int, names ...string) (int, error) {
	for _, n := range names {
		if p, ok := s.Pins[n]; ok {
			return p, nil
		}
	}
	if def >= 0 {
		return def, nil
	}
	return 0, fmt.Errorf("%w: %s needs pin %q", ErrMissingPin, s.Kind, names[0])
}

// intOption reads an integer option. YAML yields int; JSON yields float64.
func (s Spec) intOption(name string, def int) (int, error) {
	v, ok := s.Options[name]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("%w: %s.%s must be an integer", ErrInvalidOption, s.Name, name)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: %s.%s must be an integer, got %T", ErrInvalidOption, s.Name, name, v)
	}
}

func (s Spec) floatOption(name string, def float64) (float64, error) {
	v, ok := s.Options[name]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case float64:
		return n, nil
	default:
		return 0, fmt.Errorf("%w: %s.%s must be a number, got %T", ErrInvalidOption, s.Name, name, v)
	}
}

func (s Spec) boolOption(name string, def bool) (bool, error) {
	v, ok := s.Options[name]
	if !ok || v == nil {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s.%s must be a boolean, got %T", ErrInvalidOption, s.Name, name, v)
	}
	return b, nil
}

func (s Spec) stringOption(name, def string) (string, error) {
	v, ok := s.Options[name]
	if !ok || v == nil {
		return def, nil
	}
	str, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s.%s must be a string, got %T", ErrInvalidOption, s.Name, name, v)
	}
	return str, nil
}

// floatArg reads a required numeric method argument.
func floatArg(args map[string]any, name string) (float64, error) {
	v, ok := args[name]
	if !ok || v == nil {
		return 0, fmt.Errorf("%w: missing %q", ErrInvalidArgument, name)
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("%w: %q must be a number, got %T", ErrInvalidArgument, name, v)
	}
}

// boolToLevel maps a logical state to a pin level honouring polarity.
func boolToLevel(on, activeHigh bool) int {
	if on == activeHigh {
		return 1
	}
	return 0
}

func levelToBool(level int, activeHigh bool) bool {
	return (level == 1) == activeHigh
}
