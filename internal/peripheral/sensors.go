package peripheral

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"
)

// =============================================================================
// DHT temperature/humidity sensor
// =============================================================================

// dhtSensor reads a DHT11 or DHT22.
//
// Methods:
//   - read: {"temperature": °C, "humidity": %RH}
type dhtSensor struct {
	*baseDriver
	pin        int
	sensorType string
	simulate   bool
	backend    PinBackend
}

func newDHT(spec Spec) (Driver, error) {
	pin, err := spec.pin(-1, "pin")
	if err != nil {
		return nil, err
	}
	sensorType, err := spec.stringOption("sensor_type", "DHT22")
	if err != nil {
		return nil, err
	}
	if sensorType != "DHT11" && sensorType != "DHT22" {
		return nil, fmt.Errorf("%w: %s.sensor_type must be DHT11 or DHT22", ErrInvalidOption, spec.Name)
	}
	if !spec.Simulate {
		if _, ok := spec.Backend.(ClimateReader); !ok {
			return nil, fmt.Errorf("%w: %s needs a climate-capable backend", ErrUnsupported, spec.Name)
		}
	}

	d := &dhtSensor{
		baseDriver: newBaseDriver(spec.Kind),
		pin:        pin,
		sensorType: sensorType,
		simulate:   spec.Simulate,
		backend:    spec.Backend,
	}
	d.handle("read", d.read)
	return d, nil
}

func (d *dhtSensor) read(map[string]any) (map[string]any, error) {
	var temperature, humidity float64
	if d.simulate {
		temperature = round1(randRange(18, 32))
		humidity = round1(randRange(30, 70))
	} else {
		var err error
		temperature, humidity, err = d.backend.(ClimateReader).ReadClimate(d.pin, d.sensorType)
		if err != nil {
			return nil, err
		}
	}
	return map[string]any{"temperature": temperature, "humidity": humidity}, nil
}

// =============================================================================
// Gas sensor (MQ series)
// =============================================================================

// defaultGasThreshold is the ADC level above which gas counts as detected.
const defaultGasThreshold = 2000

// gasSensor reads an MQ-series gas sensor on an analog or digital pin.
//
// Methods:
//   - read: {"level": raw reading, "detected": bool}
type gasSensor struct {
	*baseDriver
	pin       int
	analog    bool
	threshold int
	simulate  bool
	backend   PinBackend
}

func newGasSensor(spec Spec) (Driver, error) {
	pin, err := spec.pin(-1, "pin")
	if err != nil {
		return nil, err
	}
	analog, err := spec.boolOption("analog", true)
	if err != nil {
		return nil, err
	}
	threshold, err := spec.intOption("threshold", defaultGasThreshold)
	if err != nil {
		return nil, err
	}

	g := &gasSensor{
		baseDriver: newBaseDriver(spec.Kind),
		pin:        pin,
		analog:     analog,
		threshold:  threshold,
		simulate:   spec.Simulate,
		backend:    spec.Backend,
	}
	g.handle("read", g.read)
	return g, nil
}

func (g *gasSensor) read(map[string]any) (map[string]any, error) {
	var level int
	var err error
	switch {
	case g.simulate && g.analog:
		level = rand.IntN(maxADC + 1)
	case g.simulate:
		level = rand.IntN(2)
	case g.analog:
		level, err = g.backend.AnalogRead(g.pin)
	default:
		level, err = g.backend.DigitalRead(g.pin)
	}
	if err != nil {
		return nil, err
	}

	detected := level == 1
	if g.analog {
		detected = level >= g.threshold
	}
	return map[string]any{"level": level, "detected": detected}, nil
}

// =============================================================================
// Digital inputs: motion sensor, slide switch, push button
// =============================================================================

// digitalInput reads one pin and reports it under a single key.
//
// Methods:
//   - read: {key: bool}
type digitalInput struct {
	*baseDriver
	pin        int
	key        string
	activeHigh bool
	simulate   bool
	backend    PinBackend

	// Debounce state; zero debounce disables filtering.
	debounce   time.Duration
	stable     bool
	lastRaw    bool
	lastChange time.Time
	now        func() time.Time
}

func newMotionSensor(spec Spec) (Driver, error) {
	return newDigitalInput(spec, "motion", 0)
}

func newSlideSwitch(spec Spec) (Driver, error) {
	return newDigitalInput(spec, "state", 0)
}

// defaultDebounce is the push button debounce window.
const defaultDebounce = 50 * time.Millisecond

func newPushButton(spec Spec) (Driver, error) {
	ms, err := spec.intOption("debounce_ms", int(defaultDebounce/time.Millisecond))
	if err != nil {
		return nil, err
	}
	if ms < 0 {
		return nil, fmt.Errorf("%w: %s.debounce_ms must not be negative", ErrInvalidOption, spec.Name)
	}
	return newDigitalInput(spec, "pressed", time.Duration(ms)*time.Millisecond)
}

func newDigitalInput(spec Spec, key string, debounce time.Duration) (Driver, error) {
	pin, err := spec.pin(-1, "pin")
	if err != nil {
		return nil, err
	}
	activeHigh, err := spec.boolOption("active_high", true)
	if err != nil {
		return nil, err
	}

	in := &digitalInput{
		baseDriver: newBaseDriver(spec.Kind),
		pin:        pin,
		key:        key,
		activeHigh: activeHigh,
		simulate:   spec.Simulate,
		backend:    spec.Backend,
		debounce:   debounce,
		now:        time.Now,
	}
	in.handle("read", in.read)
	return in, nil
}

func (in *digitalInput) read(map[string]any) (map[string]any, error) {
	var raw bool
	if in.simulate {
		raw = rand.IntN(10) == 0
	} else {
		level, err := in.backend.DigitalRead(in.pin)
		if err != nil {
			return nil, err
		}
		raw = levelToBool(level, in.activeHigh)
	}
	return map[string]any{in.key: in.filter(raw)}, nil
}

// filter accepts a new level only once it has been seen unchanged for the
// debounce window.
func (in *digitalInput) filter(raw bool) bool {
	if in.debounce <= 0 {
		in.stable = raw
		return raw
	}
	now := in.now()
	if raw != in.lastRaw {
		in.lastRaw = raw
		in.lastChange = now
	}
	if raw != in.stable && now.Sub(in.lastChange) >= in.debounce {
		in.stable = raw
	}
	return in.stable
}

// =============================================================================
// Helpers
// =============================================================================

func randRange(lo, hi float64) float64 {
	return lo + rand.Float64()*(hi-lo)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
