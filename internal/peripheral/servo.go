package peripheral

import (
	"fmt"
	"math"
)

// Servo defaults for SG90-class hobby servos.
const (
	defaultServoFreq   = 50
	defaultServoMinUS  = 544
	defaultServoMaxUS  = 2400
	defaultServoMinDeg = 0
	defaultServoMaxDeg = 180
)

// servo positions a hobby servo with a PWM pulse.
//
// Methods:
//   - write_angle: move to args.angle degrees
//   - angle: return the last commanded position
//
// Both return {"angle": degrees, "duty": fraction of the PWM period}.
type servo struct {
	*baseDriver
	pin            int
	freq           int
	minUS, maxUS   float64
	minDeg, maxDeg float64
	simulate       bool
	backend        PinBackend
	angle          float64
}

func newServo(spec Spec) (Driver, error) {
	pin, err := spec.pin(-1, "pin_id", "pin")
	if err != nil {
		return nil, err
	}

	s := &servo{
		baseDriver: newBaseDriver(spec.Kind),
		pin:        pin,
		simulate:   spec.Simulate,
		backend:    spec.Backend,
	}
	if s.freq, err = spec.intOption("freq", defaultServoFreq); err != nil {
		return nil, err
	}
	if s.minUS, err = spec.floatOption("min_us", defaultServoMinUS); err != nil {
		return nil, err
	}
	if s.maxUS, err = spec.floatOption("max_us", defaultServoMaxUS); err != nil {
		return nil, err
	}
	if s.minDeg, err = spec.floatOption("min_deg", defaultServoMinDeg); err != nil {
		return nil, err
	}
	maxDefault := float64(defaultServoMaxDeg)
	if r, rerr := spec.floatOption("angle_range", 0); rerr == nil && r > 0 {
		maxDefault = s.minDeg + r
	}
	if s.maxDeg, err = spec.floatOption("max_deg", maxDefault); err != nil {
		return nil, err
	}

	switch {
	case s.freq <= 0:
		return nil, fmt.Errorf("%w: %s.freq must be positive", ErrInvalidOption, spec.Name)
	case s.minUS <= 0 || s.maxUS <= s.minUS:
		return nil, fmt.Errorf("%w: %s needs 0 < min_us < max_us", ErrInvalidOption, spec.Name)
	case s.maxDeg <= s.minDeg:
		return nil, fmt.Errorf("%w: %s needs min_deg < max_deg", ErrInvalidOption, spec.Name)
	case s.maxUS >= 1e6/float64(s.freq):
		return nil, fmt.Errorf("%w: %s.max_us exceeds the PWM period", ErrInvalidOption, spec.Name)
	}

	s.angle = s.minDeg
	s.handle("write_angle", s.writeAngle)
	s.handle("angle", func(map[string]any) (map[string]any, error) { return s.result(), nil })
	return s, nil
}

func (s *servo) writeAngle(args map[string]any) (map[string]any, error) {
	angle, err := floatArg(args, "angle")
	if err != nil {
		return nil, err
	}
	if angle < s.minDeg || angle > s.maxDeg || math.IsNaN(angle) {
		return nil, fmt.Errorf("%w: angle %v outside [%v, %v]", ErrInvalidArgument, angle, s.minDeg, s.maxDeg)
	}

	if !s.simulate {
		if err := s.backend.SetPWM(s.pin, s.freq, s.duty(angle)); err != nil {
			return nil, err
		}
	}
	s.angle = angle
	return s.result(), nil
}

// duty converts an angle into the PWM duty fraction.
func (s *servo) duty(angle float64) float64 {
	pulse := s.minUS + (angle-s.minDeg)/(s.maxDeg-s.minDeg)*(s.maxUS-s.minUS)
	period := 1e6 / float64(s.freq)
	return pulse / period
}

func (s *servo) result() map[string]any {
	return map[string]any{"angle": s.angle, "duty": s.duty(s.angle)}
}
