// Package peripheral provides the Peripheral Registry for Gray Logic Node.
//
// A peripheral is a named driver attached to the board (LED, relay, servo,
// sensors). Each driver exposes methods; invoking a method returns a
// {param → value} map, so any value on the node is addressed as
// [peripheral][method][param]:
//
//	relay.on    → {"state": true, "value": 1}
//	dht.read    → {"temperature": 22.4, "humidity": 41.0}
//	servo.angle → {"angle": 90, "duty": 0.0737}
//
// # Architecture
//
//	Registry ──▶ Driver (kind table) ──▶ PinBackend
//	                                      └─ SimBackend (in-memory pins)
//
// Drivers built with simulate=true never touch the backend: actuators keep
// their state in memory and sensors return bounded random readings.
// Otherwise drivers read and write pins through the PinBackend.
//
// # Thread Safety
//
// The registry is immutable after NewRegistry. Each driver serialises its
// own method calls, so Invoke is safe from any goroutine.
//
// # Usage
//
//	reg, err := peripheral.NewRegistry(cfg.Peripherals, peripheral.NewSimBackend())
//	if err != nil {
//	    return err
//	}
//	v, err := reg.Lookup("relay", "state", "state")
package peripheral
