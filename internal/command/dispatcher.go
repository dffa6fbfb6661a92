package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/automation"
	"github.com/nerrad567/gray-logic-node/internal/peripheral"
)

// Peripherals is the part of the peripheral registry the dispatcher uses.
type Peripherals interface {
	Invoke(peripheral, method string, args map[string]any) (map[string]any, error)
	Pins() map[string]map[string]int
}

// Rules receives registered automations.
type Rules interface {
	Add(rule automation.Rule) automation.Rule
	Len() int
}

// MQTTClient is the interface for publishing replies.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	Broadcast(channel string, payload any)
}

// Metrics receives per-command counters.
type Metrics interface {
	CommandHandled(kind string, ok bool, seconds float64)
	SetRuleCount(n int)
}

// Telemetry records commands and peripheral readings.
type Telemetry interface {
	WriteCommand(kind string, ok bool, latency time.Duration)
	WriteReading(peripheral, method string, values map[string]any)
}

// Logger defines the logging interface used by the Dispatcher.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// WebSocket channels.
const (
	ChannelPeripheralInvoked    = "peripheral.invoked"
	ChannelAutomationRegistered = "automation.registered"
)

// InvokedEvent is broadcast after a successful invocation.
type InvokedEvent struct {
	Peripheral string         `json:"peripheral"`
	Method     string         `json:"method"`
	Values     map[string]any `json:"values"`
}

// Deps holds the dispatcher's collaborators.
//
// Peripherals, Rules, MQTT and ReplyTopic are required. The rest may be nil.
type Deps struct {
	Peripherals Peripherals
	Rules       Rules
	MQTT        MQTTClient
	ReplyTopic  string
	QoS         byte

	Hub       WSHub
	Metrics   Metrics
	Telemetry Telemetry
	Logger    Logger
}

// Dispatcher handles messages arriving on the node's command topic.
//
// Three shapes are recognised (see Classify):
//   - automation: the message is stored as a rule; no reply is sent
//   - pins: reply {pins, status:true, commandId}
//   - invoke: run [peripheral][method], reply {peripheral, method, value,
//     status:true, commandId}
//
// Failed pins or invoke commands get {status:false, error, commandId}. The
// error is also returned so the transport wrapper logs it.
//
// Thread Safety: Handle is safe for concurrent use.
type Dispatcher struct {
	peripherals Peripherals
	rules       Rules
	mqtt        MQTTClient
	replyTopic  string
	qos         byte
	hub         WSHub
	metrics     Metrics
	telemetry   Telemetry
	logger      Logger
	now         func() time.Time
}

// NewDispatcher creates a dispatcher from its dependencies.
func NewDispatcher(deps Deps) *Dispatcher {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Dispatcher{
		peripherals: deps.Peripherals,
		rules:       deps.Rules,
		mqtt:        deps.MQTT,
		replyTopic:  deps.ReplyTopic,
		qos:         deps.QoS,
		hub:         deps.Hub,
		metrics:     deps.Metrics,
		telemetry:   deps.Telemetry,
		logger:      logger,
		now:         time.Now,
	}
}

// Handle processes one inbound message. Its signature matches
// mqtt.MessageHandler so it can be passed to Subscribe directly.
//
// Returns:
//   - error: nil on success, or a wrapped ErrMalformedMessage,
//     peripheral.ErrUnknownPeripheral, ErrUnknownMethod, ErrUnknownParam,
//     a driver error, or ErrReplyFailed
func (d *Dispatcher) Handle(topic string, payload []byte) error {
	start := d.now()

	kind, err := Classify(payload)
	if err == nil {
		switch kind {
		case KindAutomation:
			err = d.handleAutomation(payload)
		case KindPins:
			err = d.handlePins(payload)
		default:
			err = d.handleInvoke(payload)
		}
	}

	elapsed := d.now().Sub(start)
	if d.metrics != nil {
		d.metrics.CommandHandled(string(kind), err == nil, elapsed.Seconds())
	}
	if d.telemetry != nil {
		d.telemetry.WriteCommand(string(kind), err == nil, elapsed)
	}
	if err != nil {
		return fmt.Errorf("handling %s message on %s: %w", kind, topic, err)
	}
	d.logger.Debug("command handled", "kind", string(kind), "topic", topic, "duration", elapsed.String())
	return nil
}

func (d *Dispatcher) handleAutomation(payload []byte) error {
	rule, err := automation.ParseRule(payload)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	stored := d.rules.Add(rule)

	if d.metrics != nil {
		d.metrics.SetRuleCount(d.rules.Len())
	}
	if d.hub != nil {
		d.hub.Broadcast(ChannelAutomationRegistered, stored)
	}
	return nil
}

func (d *Dispatcher) handlePins(payload []byte) error {
	return d.reply(PinsReply{
		Pins:      d.peripherals.Pins(),
		Status:    true,
		CommandID: commandID(payload),
	})
}

func (d *Dispatcher) handleInvoke(payload []byte) error {
	req, err := parseRequest(payload)
	if err != nil {
		return d.fail(commandID(payload), err)
	}

	values, err := d.peripherals.Invoke(req.Peripheral, req.Method, req.Args)
	if err != nil {
		return d.fail(req.CommandID, err)
	}

	var value any = values
	if req.Param != "" {
		v, ok := values[req.Param]
		if !ok {
			err := fmt.Errorf("%w: %s.%s has no %q", peripheral.ErrUnknownParam, req.Peripheral, req.Method, req.Param)
			return d.fail(req.CommandID, err)
		}
		value = v
	}

	if d.telemetry != nil {
		d.telemetry.WriteReading(req.Peripheral, req.Method, values)
	}
	if d.hub != nil {
		d.hub.Broadcast(ChannelPeripheralInvoked, InvokedEvent{
			Peripheral: req.Peripheral,
			Method:     req.Method,
			Values:     values,
		})
	}

	return d.reply(InvokeReply{
		Peripheral: req.Peripheral,
		Method:     req.Method,
		Value:      value,
		Status:     true,
		CommandID:  req.CommandID,
	})
}

// fail replies with an error when the caller supplied a commandId, then
// returns cause (joined with any reply failure).
func (d *Dispatcher) fail(id json.RawMessage, cause error) error {
	if id == nil {
		return cause
	}
	if err := d.reply(ErrorReply{Status: false, Error: cause.Error(), CommandID: id}); err != nil {
		return errors.Join(cause, err)
	}
	return cause
}

func (d *Dispatcher) reply(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: marshalling: %w", ErrReplyFailed, err)
	}
	if err := d.mqtt.Publish(d.replyTopic, payload, d.qos, false); err != nil {
		return fmt.Errorf("%w: %w", ErrReplyFailed, err)
	}
	return nil
}
