package peripheral

import (
	"fmt"
	"math"
)

// defaultIMUAddr is the MPU6050's I²C address with AD0 low.
const defaultIMUAddr = 0x68

// accelerometer reads an MPU6050-class IMU over I²C.
//
// Methods:
//   - read: {"ax","ay","az" in g, "gx","gy","gz" in °/s, "temperature" in °C}
type accelerometer struct {
	*baseDriver
	addr     int
	simulate bool
	backend  PinBackend
}

func newAccelerometer(spec Spec) (Driver, error) {
	addr, err := spec.intOption("addr", defaultIMUAddr)
	if err != nil {
		return nil, err
	}
	if addr < 0x08 || addr > 0x77 {
		return nil, fmt.Errorf("%w: %s.addr 0x%x is not a 7-bit I2C address", ErrInvalidOption, spec.Name, addr)
	}
	if !spec.Simulate {
		if _, ok := spec.Backend.(IMUReader); !ok {
			return nil, fmt.Errorf("%w: %s needs an I2C-capable backend", ErrUnsupported, spec.Name)
		}
	}

	a := &accelerometer{
		baseDriver: newBaseDriver(spec.Kind),
		addr:       addr,
		simulate:   spec.Simulate,
		backend:    spec.Backend,
	}
	a.handle("read", a.read)
	return a, nil
}

func (a *accelerometer) read(map[string]any) (map[string]any, error) {
	var s IMUSample
	if a.simulate {
		// Board lying flat: gravity on Z plus noise.
		s = IMUSample{
			AX: round3(randRange(-0.05, 0.05)),
			AY: round3(randRange(-0.05, 0.05)),
			AZ: round3(randRange(0.95, 1.05)),
			GX: round3(randRange(-2, 2)),
			GY: round3(randRange(-2, 2)),
			GZ: round3(randRange(-2, 2)),

			Temperature: round1(randRange(20, 30)),
		}
	} else {
		var err error
		if s, err = a.backend.(IMUReader).ReadIMU(a.addr); err != nil {
			return nil, err
		}
	}
	return map[string]any{
		"ax": s.AX, "ay": s.AY, "az": s.AZ,
		"gx": s.GX, "gy": s.GY, "gz": s.GZ,
		"temperature": s.Temperature,
	}, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
