package peripheral

import (
	"fmt"
	"sync"
)

// PinBackend abstracts GPIO pin operations for drivers.
//
// Levels are 0 or 1. Analog reads return raw ADC counts (0-4095 on a
// 12-bit converter). PWM duty is a fraction between 0 and 1.
type PinBackend interface {
	DigitalRead(pin int) (int, error)
	DigitalWrite(pin, level int) error
	AnalogRead(pin int) (int, error)
	SetPWM(pin, freq int, duty float64) error
}

// ClimateReader is implemented by backends that can sample single-wire
// temperature/humidity sensors such as the DHT family.
type ClimateReader interface {
	ReadClimate(pin int, sensorType string) (temperature, humidity float64, err error)
}

// IMUSample is one accelerometer/gyroscope reading.
// Acceleration is in g, angular rate in °/s, temperature in °C.
type IMUSample struct {
	AX, AY, AZ  float64
	GX, GY, GZ  float64
	Temperature float64
}

// IMUReader is implemented by backends with an I²C bus serving
// accelerometer/gyroscope chips.
type IMUReader interface {
	ReadIMU(addr int) (IMUSample, error)
}

// maxADC is the full-scale reading of the ESP32's 12-bit ADC.
const maxADC = 4095

// PWMState is the last PWM configuration written to a pin.
type PWMState struct {
	Freq int
	Duty float64
}

// SimBackend is an in-memory PinBackend.
//
// Written levels can be read back, and tests or demos can inject input
// levels, ADC readings, climate and IMU samples. Unset pins read as 0.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
type SimBackend struct {
	mu      sync.Mutex
	levels  map[int]int
	analog  map[int]int
	pwm     map[int]PWMState
	climate map[int][2]float64
	imu     map[int]IMUSample
}

// NewSimBackend creates an empty simulated backend.
func NewSimBackend() *SimBackend {
	return &SimBackend{
		levels:  make(map[int]int),
		analog:  make(map[int]int),
		pwm:     make(map[int]PWMState),
		climate: make(map[int][2]float64),
		imu:     make(map[int]IMUSample),
	}
}

// DigitalRead returns the current level of a pin.
func (b *SimBackend) DigitalRead(pin int) (int, error) {
	if err := checkPin(pin); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.levels[pin], nil
}

// DigitalWrite sets the level of a pin.
func (b *SimBackend) DigitalWrite(pin, level int) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	if level != 0 && level != 1 {
		return fmt.Errorf("%w: level %d on pin %d", ErrInvalidArgument, level, pin)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.levels[pin] = level
	return nil
}

// AnalogRead returns the injected ADC reading of a pin.
func (b *SimBackend) AnalogRead(pin int) (int, error) {
	if err := checkPin(pin); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.analog[pin], nil
}

// SetPWM records the PWM configuration of a pin.
func (b *SimBackend) SetPWM(pin, freq int, duty float64) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	if freq <= 0 || duty < 0 || duty > 1 {
		return fmt.Errorf("%w: pwm freq=%d duty=%v on pin %d", ErrInvalidArgument, freq, duty, pin)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pwm[pin] = PWMState{Freq: freq, Duty: duty}
	return nil
}

// ReadClimate returns the injected climate sample of a pin.
func (b *SimBackend) ReadClimate(pin int, _ string) (float64, float64, error) {
	if err := checkPin(pin); err != nil {
		return 0, 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s := b.climate[pin]
	return s[0], s[1], nil
}

// ReadIMU returns the injected sample for an I²C address.
func (b *SimBackend) ReadIMU(addr int) (IMUSample, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.imu[addr], nil
}

// SetLevel injects an input level, as if driven externally.
func (b *SimBackend) SetLevel(pin, level int) {
	b.mu.Lock()
	b.levels[pin] = level
	b.mu.Unlock()
}

// SetAnalog injects an ADC reading, clamped to the converter range.
func (b *SimBackend) SetAnalog(pin, value int) {
	b.mu.Lock()
	b.analog[pin] = min(max(value, 0), maxADC)
	b.mu.Unlock()
}

// SetClimate injects a temperature/humidity sample for a DHT pin.
func (b *SimBackend) SetClimate(pin int, temperature, humidity float64) {
	b.mu.Lock()
	b.climate[pin] = [2]float64{temperature, humidity}
	b.mu.Unlock()
}

// SetIMU injects an accelerometer sample for an I²C address.
func (b *SimBackend) SetIMU(addr int, s IMUSample) {
	b.mu.Lock()
	b.imu[addr] = s
	b.mu.Unlock()
}

// PWM returns the last PWM configuration written to a pin.
func (b *SimBackend) PWM(pin int) (PWMState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.pwm[pin]
	return s, ok
}

// ESP32 GPIOs run 0-39.
func checkPin(pin int) error {
	if pin < 0 || pin > 39 {
		return fmt.Errorf("%w: pin %d out of range", ErrInvalidArgument, pin)
	}
	return nil
}
