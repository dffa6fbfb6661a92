package automation

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Condition is the comparison applied between a peripheral value and a
// rule's threshold.
type Condition string

// Supported conditions.
const (
	ConditionGreater Condition = "gt"
	ConditionLess    Condition = "lt"
	ConditionEqual   Condition = "eq"
)

// Rule is a registered automation.
//
// Registration messages are stored as sent: no field is validated at
// registration. Threshold and OutputDeviceID keep their decoded JSON values
// and are converted when the rule is evaluated, so a badly typed rule fails
// on its own at each tick. ID and RegisteredAt are assigned by the
// Registry and never read from the message.
type Rule struct {
	ID           string    `json:"rule_id"`
	RegisteredAt time.Time `json:"registered_at"`

	// Input: the value read at [Source][Method][InputParams].
	Source      string `json:"source"`
	Method      string `json:"method"`
	InputParams string `json:"inputParams"`

	// Threshold is nil when the message carried none; such rules never fire.
	Threshold any       `json:"threshold"`
	Condition Condition `json:"condition"`

	// Output: the command sent to OutputDeviceID when the condition holds.
	SourceOutput   string `json:"source-output"`
	MethodOutput   string `json:"method-output"`
	OutputParams   any    `json:"outputParams"`
	OutputDeviceID any    `json:"outputDeviceId"`

	// Raw is the registration message as received.
	Raw json.RawMessage `json:"raw,omitempty"`
}

// ruleMessage is the wire shape of a registration message. Every field
// accepts any JSON value.
type ruleMessage struct {
	Source         any `json:"source"`
	Method         any `json:"method"`
	InputParams    any `json:"inputParams"`
	Threshold      any `json:"threshold"`
	Condition      any `json:"condition"`
	SourceOutput   any `json:"source-output"`
	MethodOutput   any `json:"method-output"`
	OutputParams   any `json:"outputParams"`
	OutputDeviceID any `json:"outputDeviceId"`
}

// OutboundCommand is the message published to the output device.
// It has the same shape as an inbound invocation.
type OutboundCommand struct {
	Peripheral string `json:"peripheral"`
	Method     string `json:"method"`
	Param      any    `json:"param"`
	CommandID  int    `json:"commandId"`
}

// outboundCommandID is the fixed commandId carried by automation commands.
const outboundCommandID = 1

// Outbound builds the command this rule publishes when it fires.
func (r Rule) Outbound() OutboundCommand {
	return OutboundCommand{
		Peripheral: r.SourceOutput,
		Method:     r.MethodOutput,
		Param:      r.OutputParams,
		CommandID:  outboundCommandID,
	}
}

// ParseRule decodes a registration message into a Rule.
// The original message is kept in Rule.Raw.
//
// Field types are not checked here; see Rule.ThresholdValue and
// Rule.OutputDevice.
//
// Returns:
//   - Rule: Decoded rule without ID or timestamp
//   - error: ErrInvalidRule if the payload is not a JSON object
func ParseRule(payload []byte) (Rule, error) {
	var m ruleMessage
	if err := json.Unmarshal(payload, &m); err != nil {
		return Rule{}, fmt.Errorf("%w: %v", ErrInvalidRule, err)
	}
	return Rule{
		Source:         text(m.Source),
		Method:         text(m.Method),
		InputParams:    text(m.InputParams),
		Threshold:      m.Threshold,
		Condition:      Condition(text(m.Condition)),
		SourceOutput:   text(m.SourceOutput),
		MethodOutput:   text(m.MethodOutput),
		OutputParams:   m.OutputParams,
		OutputDeviceID: m.OutputDeviceID,
		Raw:            append(json.RawMessage(nil), payload...),
	}, nil
}

// ThresholdValue returns the rule's threshold as a number.
//
// ok is false when the message carried no threshold (absent or null).
// Numbers, numeric strings and booleans convert; anything else returns
// ErrNotComparable.
func (r Rule) ThresholdValue() (value float64, ok bool, err error) {
	if r.Threshold == nil {
		return 0, false, nil
	}
	value, err = toNumber(r.Threshold)
	if err != nil {
		return 0, true, fmt.Errorf("threshold: %w", err)
	}
	return value, true, nil
}

// OutputDevice returns the numeric id of the device the rule commands.
// It accepts a JSON integer or a numeric string, since dashboards send either.
//
// Returns ErrInvalidDevice for anything else.
func (r Rule) OutputDevice() (int, error) {
	var f float64
	switch v := r.OutputDeviceID.(type) {
	case nil, bool:
		return 0, fmt.Errorf("%w: %v", ErrInvalidDevice, r.OutputDeviceID)
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidDevice, v)
		}
		f = n
	default:
		n, err := toFloat(v)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrInvalidDevice, v)
		}
		f = n
	}
	if f != math.Trunc(f) || f < 0 || f > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidDevice, r.OutputDeviceID)
	}
	return int(f), nil
}

// text renders a loosely typed field as a string. Strings pass through,
// null becomes "" and other values use their JSON text.
func text(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Sprint(s)
		}
		return string(b)
	}
}
