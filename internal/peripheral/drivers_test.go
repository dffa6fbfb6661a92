package peripheral

import (
	"errors"
	"testing"
	"time"
)

func buildDriver(t *testing.T, build constructor, spec Spec) Driver {
	t.Helper()
	if spec.Backend == nil {
		spec.Backend = NewSimBackend()
	}
	if spec.Name == "" {
		spec.Name = "dut"
	}
	d, err := build(spec)
	if err != nil {
		t.Fatalf("constructor error = %v", err)
	}
	return d
}

func invoke(t *testing.T, d Driver, method string, args map[string]any) map[string]any {
	t.Helper()
	values, err := d.Invoke(method, args)
	if err != nil {
		t.Fatalf("Invoke(%q) error = %v", method, err)
	}
	return values
}

// =============================================================================
// Binary Output Tests
// =============================================================================

func TestBinaryOutput_DrivesPin(t *testing.T) {
	tests := []struct {
		name       string
		activeHigh bool
		wantOn     int
		wantOff    int
	}{
		{name: "active high", activeHigh: true, wantOn: 1, wantOff: 0},
		{name: "active low", activeHigh: false, wantOn: 0, wantOff: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := NewSimBackend()
			d := buildDriver(t, newRelay, Spec{
				Kind:    KindRelay,
				Pins:    map[string]int{"pin": 5},
				Options: map[string]any{"active_high": tt.activeHigh},
				Backend: backend,
			})

			if level, _ := backend.DigitalRead(5); level != tt.wantOff {
				t.Errorf("initial level = %d, want %d", level, tt.wantOff)
			}

			values := invoke(t, d, "on", nil)
			if values["state"] != true || values["value"] != 1 {
				t.Errorf("on = %v, want state=true value=1", values)
			}
			if level, _ := backend.DigitalRead(5); level != tt.wantOn {
				t.Errorf("level after on = %d, want %d", level, tt.wantOn)
			}

			invoke(t, d, "toggle", nil)
			if level, _ := backend.DigitalRead(5); level != tt.wantOff {
				t.Errorf("level after toggle = %d, want %d", level, tt.wantOff)
			}
			if got := invoke(t, d, "state", nil); got["state"] != false {
				t.Errorf("state after toggle = %v, want false", got["state"])
			}
		})
	}
}

func TestBinaryOutput_SimulateSkipsBackend(t *testing.T) {
	backend := NewSimBackend()
	backend.SetLevel(5, 1)
	d := buildDriver(t, newRelay, Spec{
		Kind:     KindRelay,
		Pins:     map[string]int{"pin": 5},
		Simulate: true,
		Backend:  backend,
	})

	invoke(t, d, "off", nil)
	if level, _ := backend.DigitalRead(5); level != 1 {
		t.Errorf("simulated relay touched the backend: level = %d", level)
	}
	if got := invoke(t, d, "on", nil); got["state"] != true {
		t.Errorf("simulated relay state = %v, want true", got["state"])
	}
}

func TestInternalLED_DefaultPin(t *testing.T) {
	backend := NewSimBackend()
	d := buildDriver(t, newInternalLED, Spec{Kind: KindInternalLED, Backend: backend})

	invoke(t, d, "on", nil)
	if level, _ := backend.DigitalRead(internalLEDPin); level != 1 {
		t.Errorf("GPIO %d level = %d, want 1", internalLEDPin, level)
	}
}

func TestBinaryOutput_BackendError(t *testing.T) {
	_, err := newLED(Spec{Name: "led", Kind: KindLED, Pins: map[string]int{"pin": 99}, Backend: NewSimBackend()})
	if !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("newLED(pin 99) error = %v, want ErrInvalidArgument", err)
	}
}

// =============================================================================
// Servo Tests
// =============================================================================

func TestServo_WriteAngle(t *testing.T) {
	backend := NewSimBackend()
	d := buildDriver(t, newServo, Spec{Kind: KindServo, Pins: map[string]int{"pin": 15}, Backend: backend})

	tests := []struct {
		angle    float64
		wantDuty float64
	}{
		{angle: 0, wantDuty: 544.0 / 20000.0},
		{angle: 180, wantDuty: 2400.0 / 20000.0},
		{angle: 45, wantDuty: 1008.0 / 20000.0},
	}

	for _, tt := range tests {
		values := invoke(t, d, "write_angle", map[string]any{"angle": tt.angle})
		if values["angle"] != tt.angle {
			t.Errorf("angle = %v, want %v", values["angle"], tt.angle)
		}
		pwm, _ := backend.PWM(15)
		if !almostEqual(pwm.Duty, tt.wantDuty) {
			t.Errorf("angle %v: duty = %v, want %v", tt.angle, pwm.Duty, tt.wantDuty)
		}
	}

	if got := invoke(t, d, "angle", nil); got["angle"] != 45.0 {
		t.Errorf("angle() = %v, want 45", got["angle"])
	}
}

func TestServo_InvalidArgs(t *testing.T) {
	d := buildDriver(t, newServo, Spec{Kind: KindServo, Pins: map[string]int{"pin": 15}})

	tests := []struct {
		name string
		args map[string]any
	}{
		{name: "missing angle", args: nil},
		{name: "wrong type", args: map[string]any{"angle": "ninety"}},
		{name: "below range", args: map[string]any{"angle": -1.0}},
		{name: "above range", args: map[string]any{"angle": 181.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := d.Invoke("write_angle", tt.args); !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("write_angle error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestServo_AngleRangeOption(t *testing.T) {
	d := buildDriver(t, newServo, Spec{
		Kind:    KindServo,
		Pins:    map[string]int{"pin": 15},
		Options: map[string]any{"angle_range": 90},
	})

	if _, err := d.Invoke("write_angle", map[string]any{"angle": 120.0}); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("write_angle(120) with 90° range error = %v, want ErrInvalidArgument", err)
	}
}

// =============================================================================
// Sensor Tests
// =============================================================================

func TestDHT_Backend(t *testing.T) {
	backend := NewSimBackend()
	backend.SetClimate(4, 21.5, 48.2)
	d := buildDriver(t, newDHT, Spec{Kind: KindDHT, Pins: map[string]int{"pin": 4}, Backend: backend})

	values := invoke(t, d, "read", nil)
	if values["temperature"] != 21.5 || values["humidity"] != 48.2 {
		t.Errorf("read = %v, want temperature=21.5 humidity=48.2", values)
	}
}

func TestDHT_SimulatedRange(t *testing.T) {
	d := buildDriver(t, newDHT, Spec{Kind: KindDHT, Pins: map[string]int{"pin": 4}, Simulate: true})

	for range 50 {
		values := invoke(t, d, "read", nil)
		temp := values["temperature"].(float64)
		hum := values["humidity"].(float64)
		if temp < 18 || temp > 32 || hum < 30 || hum > 70 {
			t.Fatalf("simulated reading out of range: %v", values)
		}
	}
}

func TestSensors_UnsupportedBackend(t *testing.T) {
	// Embedding hides the climate and IMU methods of SimBackend.
	backend := struct{ PinBackend }{NewSimBackend()}

	if _, err := newDHT(Spec{Name: "dht", Kind: KindDHT, Pins: map[string]int{"pin": 4}, Backend: backend}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("newDHT() error = %v, want ErrUnsupported", err)
	}
	if _, err := newAccelerometer(Spec{Name: "imu", Kind: KindAccelerometer, Backend: backend}); !errors.Is(err, ErrUnsupported) {
		t.Errorf("newAccelerometer() error = %v, want ErrUnsupported", err)
	}
}

func TestGasSensor(t *testing.T) {
	tests := []struct {
		name         string
		options      map[string]any
		analog       int
		level        int
		wantLevel    int
		wantDetected bool
	}{
		{name: "analog below threshold", analog: 1500, wantLevel: 1500, wantDetected: false},
		{name: "analog at threshold", analog: 2000, wantLevel: 2000, wantDetected: true},
		{name: "custom threshold", options: map[string]any{"threshold": 1000}, analog: 1500, wantLevel: 1500, wantDetected: true},
		{name: "digital high", options: map[string]any{"analog": false}, level: 1, wantLevel: 1, wantDetected: true},
		{name: "digital low", options: map[string]any{"analog": false}, level: 0, wantLevel: 0, wantDetected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := NewSimBackend()
			backend.SetAnalog(34, tt.analog)
			backend.SetLevel(34, tt.level)
			d := buildDriver(t, newGasSensor, Spec{
				Kind: KindGas, Pins: map[string]int{"pin": 34}, Options: tt.options, Backend: backend,
			})

			values := invoke(t, d, "read", nil)
			if values["level"] != tt.wantLevel || values["detected"] != tt.wantDetected {
				t.Errorf("read = %v, want level=%d detected=%v", values, tt.wantLevel, tt.wantDetected)
			}
		})
	}
}

func TestDigitalInputs_Keys(t *testing.T) {
	tests := []struct {
		build constructor
		kind  string
		key   string
	}{
		{build: newMotionSensor, kind: KindMotion, key: "motion"},
		{build: newSlideSwitch, kind: KindSlideSwitch, key: "state"},
		{build: newPushButton, kind: KindPushButton, key: "pressed"},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			backend := NewSimBackend()
			backend.SetLevel(17, 1)
			d := buildDriver(t, tt.build, Spec{
				Kind:    tt.kind,
				Pins:    map[string]int{"pin": 17},
				Options: map[string]any{"debounce_ms": 0},
				Backend: backend,
			})

			if got := invoke(t, d, "read", nil); got[tt.key] != true {
				t.Errorf("read = %v, want %s=true", got, tt.key)
			}
		})
	}
}

func TestDigitalInput_ActiveLow(t *testing.T) {
	backend := NewSimBackend()
	backend.SetLevel(17, 0)
	d := buildDriver(t, newMotionSensor, Spec{
		Kind: KindMotion, Pins: map[string]int{"pin": 17},
		Options: map[string]any{"active_high": false}, Backend: backend,
	})

	if got := invoke(t, d, "read", nil); got["motion"] != true {
		t.Errorf("active-low read at level 0 = %v, want motion=true", got)
	}
}

func TestPushButton_Debounce(t *testing.T) {
	backend := NewSimBackend()
	d := buildDriver(t, newPushButton, Spec{
		Kind: KindPushButton, Pins: map[string]int{"pin": 18}, Backend: backend,
	})
	btn := d.(*digitalInput)

	clock := time.Unix(1000, 0)
	btn.now = func() time.Time { return clock }

	backend.SetLevel(18, 1)
	if got := invoke(t, d, "read", nil); got["pressed"] != false {
		t.Error("press reported before debounce window elapsed")
	}

	clock = clock.Add(20 * time.Millisecond)
	if got := invoke(t, d, "read", nil); got["pressed"] != false {
		t.Error("press reported after 20ms, want 50ms window")
	}

	clock = clock.Add(40 * time.Millisecond)
	if got := invoke(t, d, "read", nil); got["pressed"] != true {
		t.Error("press not reported after 60ms stable")
	}

	// A short bounce back to released is ignored.
	backend.SetLevel(18, 0)
	clock = clock.Add(10 * time.Millisecond)
	if got := invoke(t, d, "read", nil); got["pressed"] != true {
		t.Error("bounce released the button")
	}
}

func TestPushButton_NegativeDebounce(t *testing.T) {
	_, err := newPushButton(Spec{
		Name: "btn", Kind: KindPushButton, Pins: map[string]int{"pin": 18},
		Options: map[string]any{"debounce_ms": -5}, Backend: NewSimBackend(),
	})
	if !errors.Is(err, ErrInvalidOption) {
		t.Errorf("error = %v, want ErrInvalidOption", err)
	}
}

// =============================================================================
// Encoder Tests
// =============================================================================

func TestEncoder_Quadrature(t *testing.T) {
	backend := NewSimBackend()
	d := buildDriver(t, newEncoder, Spec{
		Kind: KindEncoder, Pins: map[string]int{"pin_a": 25, "pin_b": 26}, Backend: backend,
	})

	// Gray sequence 00 → 10 → 11 → 01 → 00 steps +1 each time.
	steps := [][2]int{{1, 0}, {1, 1}, {0, 1}, {0, 0}}
	for i, s := range steps {
		backend.SetLevel(25, s[0])
		backend.SetLevel(26, s[1])
		got := invoke(t, d, "position", nil)
		if got["position"] != i+1 {
			t.Fatalf("step %d position = %v, want %d", i, got["position"], i+1)
		}
	}

	// Reverse one step.
	backend.SetLevel(25, 0)
	backend.SetLevel(26, 1)
	if got := invoke(t, d, "position", nil); got["position"] != 3 {
		t.Errorf("after reverse step position = %v, want 3", got["position"])
	}
}

func TestEncoder_ResetAndSet(t *testing.T) {
	d := buildDriver(t, newEncoder, Spec{
		Kind: KindEncoder, Pins: map[string]int{"pin_a": 25, "pin_b": 26}, Simulate: true,
	})

	if got := invoke(t, d, "set", map[string]any{"position": 42.0}); got["position"] != 42 {
		t.Errorf("set = %v, want 42", got["position"])
	}
	if got := invoke(t, d, "reset", nil); got["position"] != 0 {
		t.Errorf("reset = %v, want 0", got["position"])
	}
	if _, err := d.Invoke("set", nil); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("set without position error = %v, want ErrInvalidArgument", err)
	}
}

// =============================================================================
// Accelerometer Tests
// =============================================================================

func TestAccelerometer_Backend(t *testing.T) {
	backend := NewSimBackend()
	backend.SetIMU(0x69, IMUSample{AX: 0.1, AY: -0.2, AZ: 0.98, GZ: 3.5, Temperature: 24})
	d := buildDriver(t, newAccelerometer, Spec{
		Kind: KindAccelerometer, Options: map[string]any{"addr": 0x69}, Backend: backend,
	})

	values := invoke(t, d, "read", nil)
	if values["ax"] != 0.1 || values["az"] != 0.98 || values["gz"] != 3.5 || values["temperature"] != 24.0 {
		t.Errorf("read = %v", values)
	}
}

func TestAccelerometer_Simulated(t *testing.T) {
	d := buildDriver(t, newAccelerometer, Spec{Kind: KindAccelerometer, Simulate: true})

	values := invoke(t, d, "read", nil)
	for _, key := range []string{"ax", "ay", "az", "gx", "gy", "gz", "temperature"} {
		if _, ok := values[key].(float64); !ok {
			t.Errorf("read missing %q: %v", key, values)
		}
	}
	if az := values["az"].(float64); az < 0.9 || az > 1.1 {
		t.Errorf("simulated az = %v, want ≈1g", az)
	}
}

// =============================================================================
// Spec Helper Tests
// =============================================================================

func TestSpecIntOption(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    int
		wantErr bool
	}{
		{name: "yaml int", value: 7, want: 7},
		{name: "json float", value: 7.0, want: 7},
		{name: "fractional", value: 7.5, wantErr: true},
		{name: "string", value: "7", wantErr: true},
		{name: "nil uses default", value: nil, want: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Spec{Name: "p", Options: map[string]any{"n": tt.value}}
			got, err := s.intOption("n", 3)
			if (err != nil) != tt.wantErr {
				t.Fatalf("intOption() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("intOption() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSimBackend_Validation(t *testing.T) {
	b := NewSimBackend()

	if err := b.DigitalWrite(4, 2); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("DigitalWrite(level 2) error = %v", err)
	}
	if _, err := b.DigitalRead(40); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("DigitalRead(pin 40) error = %v", err)
	}
	if err := b.SetPWM(15, 0, 0.5); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetPWM(freq 0) error = %v", err)
	}
	if err := b.SetPWM(15, 50, 1.5); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("SetPWM(duty 1.5) error = %v", err)
	}

	b.SetAnalog(34, 9999)
	if v, _ := b.AnalogRead(34); v != maxADC {
		t.Errorf("AnalogRead after clamp = %d, want %d", v, maxADC)
	}
}
