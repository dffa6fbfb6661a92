package command

import "errors"

// Domain errors for the command package.
//
// Lookup failures use the peripheral package's sentinels
// (peripheral.ErrUnknownPeripheral, ErrUnknownMethod, ErrUnknownParam), so
// callers check them with errors.Is against those values.
var (
	// ErrMalformedMessage is returned when a payload is not a JSON object or
	// lacks the fields its shape requires.
	ErrMalformedMessage = errors.New("command: malformed message")

	// ErrReplyFailed is returned when the reply could not be published.
	ErrReplyFailed = errors.New("command: reply failed")
)
