package command

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Kind is the shape of an inbound message.
type Kind string

// Message kinds, in the order they are tested.
const (
	KindAutomation Kind = "automation"
	KindPins       Kind = "pins"
	KindInvoke     Kind = "invoke"

	// KindMalformed labels messages that could not be classified.
	KindMalformed Kind = "malformed"
)

// Classify returns the shape of a message without decoding it.
//
// A truthy "automation" key wins over a truthy "pins" key; anything else is a
// method invocation. Truthiness follows the usual JSON reading: false, null,
// 0, "" and empty arrays or objects are false.
//
// Returns ErrMalformedMessage when the payload is not a JSON object.
func Classify(payload []byte) (Kind, error) {
	if !gjson.ValidBytes(payload) {
		return KindMalformed, fmt.Errorf("%w: invalid JSON", ErrMalformedMessage)
	}
	root := gjson.ParseBytes(payload)
	if !root.IsObject() {
		return KindMalformed, fmt.Errorf("%w: expected a JSON object", ErrMalformedMessage)
	}

	switch {
	case truthy(root.Get("automation")):
		return KindAutomation, nil
	case truthy(root.Get("pins")):
		return KindPins, nil
	default:
		return KindInvoke, nil
	}
}

func truthy(r gjson.Result) bool {
	switch r.Type {
	case gjson.True:
		return true
	case gjson.Number:
		return r.Num != 0
	case gjson.String:
		return r.Str != ""
	case gjson.JSON:
		if r.IsArray() {
			return len(r.Array()) > 0
		}
		return len(r.Map()) > 0
	default:
		return false
	}
}

// commandID returns the raw commandId of a message, or nil when absent.
// The value is echoed byte-for-byte, so numbers and strings round-trip.
func commandID(payload []byte) json.RawMessage {
	r := gjson.GetBytes(payload, "commandId")
	if !r.Exists() {
		return nil
	}
	return json.RawMessage(r.Raw)
}

// Request is a peripheral method invocation.
//
// Param selects one value from the method's result; when empty the whole
// {param → value} result is returned. Args is passed to the method, e.g.
// {"angle": 90} for servo_motor.write_angle.
type Request struct {
	Peripheral string          `json:"peripheral"`
	Method     string          `json:"method"`
	Param      string          `json:"param"`
	Args       map[string]any  `json:"args,omitempty"`
	CommandID  json.RawMessage `json:"commandId,omitempty"`
}

// parseRequest decodes and checks an invocation.
func parseRequest(payload []byte) (Request, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedMessage, err)
	}
	if req.Peripheral == "" || req.Method == "" {
		return Request{}, fmt.Errorf("%w: peripheral and method are required", ErrMalformedMessage)
	}
	return req, nil
}

// InvokeReply answers a method invocation.
type InvokeReply struct {
	Peripheral string          `json:"peripheral"`
	Method     string          `json:"method"`
	Value      any             `json:"value"`
	Status     bool            `json:"status"`
	CommandID  json.RawMessage `json:"commandId"`
}

// PinsReply answers a pin-information query.
type PinsReply struct {
	Pins      map[string]map[string]int `json:"pins"`
	Status    bool                      `json:"status"`
	CommandID json.RawMessage           `json:"commandId"`
}

// ErrorReply reports a failed command.
type ErrorReply struct {
	Status    bool            `json:"status"`
	Error     string          `json:"error"`
	CommandID json.RawMessage `json:"commandId"`
}
