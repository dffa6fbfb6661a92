package peripheral

// internalLEDPin is the onboard LED of ESP32 dev boards.
const internalLEDPin = 2

// binaryOutput drives an on/off load: LEDs and relays.
//
// Methods:
//   - on, off, toggle: change the state and return it
//   - state: return the current state
//
// Every method returns {"state": bool, "value": 0|1}.
type binaryOutput struct {
	*baseDriver
	pin        int
	activeHigh bool
	simulate   bool
	backend    PinBackend
	on         bool
}

func newLED(spec Spec) (Driver, error) {
	return newBinaryOutput(spec, -1)
}

func newInternalLED(spec Spec) (Driver, error) {
	return newBinaryOutput(spec, internalLEDPin)
}

func newRelay(spec Spec) (Driver, error) {
	return newBinaryOutput(spec, -1)
}

func newBinaryOutput(spec Spec, defaultPin int) (Driver, error) {
	pin, err := spec.pin(defaultPin, "pin")
	if err != nil {
		return nil, err
	}
	activeHigh, err := spec.boolOption("active_high", true)
	if err != nil {
		return nil, err
	}

	d := &binaryOutput{
		baseDriver: newBaseDriver(spec.Kind),
		pin:        pin,
		activeHigh: activeHigh,
		simulate:   spec.Simulate,
		backend:    spec.Backend,
	}
	d.handle("on", func(map[string]any) (map[string]any, error) { return d.set(true) })
	d.handle("off", func(map[string]any) (map[string]any, error) { return d.set(false) })
	d.handle("toggle", func(map[string]any) (map[string]any, error) { return d.set(!d.on) })
	d.handle("state", func(map[string]any) (map[string]any, error) { return d.result(), nil })

	// Drive the pin to a known "off" level at start-up.
	if _, err := d.set(false); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *binaryOutput) set(on bool) (map[string]any, error) {
	if !d.simulate {
		if err := d.backend.DigitalWrite(d.pin, boolToLevel(on, d.activeHigh)); err != nil {
			return nil, err
		}
	}
	d.on = on
	return d.result(), nil
}

func (d *binaryOutput) result() map[string]any {
	value := 0
	if d.on {
		value = 1
	}
	return map[string]any{"state": d.on, "value": value}
}
