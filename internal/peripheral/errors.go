package peripheral

import "errors"

// Domain errors for the peripheral package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, peripheral.ErrUnknownPeripheral) {
//	    // reply with an error status
//	}
var (
	// ErrUnknownPeripheral is returned when a peripheral name is not registered.
	ErrUnknownPeripheral = errors.New("peripheral: unknown peripheral")

	// ErrUnknownMethod is returned when a driver has no method with the given name.
	ErrUnknownMethod = errors.New("peripheral: unknown method")

	// ErrUnknownParam is returned when a method result has no such parameter.
	ErrUnknownParam = errors.New("peripheral: unknown param")

	// ErrUnknownKind is returned when configuration names a driver kind that does not exist.
	ErrUnknownKind = errors.New("peripheral: unknown kind")

	// ErrMissingPin is returned when a driver's required pin is not configured.
	ErrMissingPin = errors.New("peripheral: missing pin")

	// ErrInvalidOption is returned when a constructor option has the wrong type or value.
	ErrInvalidOption = errors.New("peripheral: invalid option")

	// ErrInvalidArgument is returned when a method argument is missing or out of range.
	ErrInvalidArgument = errors.New("peripheral: invalid argument")

	// ErrUnsupported is returned when the pin backend cannot serve a driver.
	ErrUnsupported = errors.New("peripheral: unsupported by backend")
)
