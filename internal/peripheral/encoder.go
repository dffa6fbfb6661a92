package peripheral

import (
	"fmt"
	"math/rand/v2"
)

// quadrature maps (previous AB << 2 | current AB) to a step of -1, 0 or +1.
var quadrature = [16]int{0, -1, 1, 0, 1, 0, 0, -1, -1, 0, 0, 1, 0, 1, -1, 0}

// encoder tracks a rotary encoder's position.
//
// Without interrupts the channels are sampled on every call, so only steps
// seen between two calls are counted.
//
// Methods:
//   - position: sample and return {"position": n}
//   - reset: zero the count
//   - set: force args.position (manual adjustment)
type encoder struct {
	*baseDriver
	pinA, pinB int
	simulate   bool
	backend    PinBackend
	position   int
	lastAB     int
}

func newEncoder(spec Spec) (Driver, error) {
	pinA, err := spec.pin(-1, "pin_a")
	if err != nil {
		return nil, err
	}
	pinB, err := spec.pin(-1, "pin_b")
	if err != nil {
		return nil, err
	}
	if pinA == pinB {
		return nil, fmt.Errorf("%w: %s pin_a and pin_b must differ", ErrInvalidOption, spec.Name)
	}

	e := &encoder{
		baseDriver: newBaseDriver(spec.Kind),
		pinA:       pinA,
		pinB:       pinB,
		simulate:   spec.Simulate,
		backend:    spec.Backend,
	}
	if !e.simulate {
		ab, err := e.sample()
		if err != nil {
			return nil, err
		}
		e.lastAB = ab
	}

	e.handle("position", e.readPosition)
	e.handle("reset", func(map[string]any) (map[string]any, error) {
		e.position = 0
		return e.result(), nil
	})
	e.handle("set", func(args map[string]any) (map[string]any, error) {
		p, err := floatArg(args, "position")
		if err != nil {
			return nil, err
		}
		e.position = int(p)
		return e.result(), nil
	})
	return e, nil
}

func (e *encoder) readPosition(map[string]any) (map[string]any, error) {
	if e.simulate {
		e.position += rand.IntN(3) - 1
		return e.result(), nil
	}

	ab, err := e.sample()
	if err != nil {
		return nil, err
	}
	e.position += quadrature[e.lastAB<<2|ab]
	e.lastAB = ab
	return e.result(), nil
}

func (e *encoder) sample() (int, error) {
	a, err := e.backend.DigitalRead(e.pinA)
	if err != nil {
		return 0, err
	}
	b, err := e.backend.DigitalRead(e.pinB)
	if err != nil {
		return 0, err
	}
	return a<<1 | b, nil
}

func (e *encoder) result() map[string]any {
	return map[string]any{"position": e.position}
}
