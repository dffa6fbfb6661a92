package automation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// ValueReader reads one peripheral value for rule evaluation.
type ValueReader interface {
	// Lookup returns the value at [peripheral][method][param].
	Lookup(peripheral, method, param string) (any, error)
}

// MQTTClient is the interface for publishing automation commands.
type MQTTClient interface {
	// Publish sends a message to the specified MQTT topic.
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	// Broadcast sends an event to all clients subscribed to the given channel.
	Broadcast(channel string, payload any)
}

// Telemetry records fired rules to the time-series store.
type Telemetry interface {
	WriteAutomationFired(ruleID, source string, outputDeviceID int, value float64)
}

// Metrics receives evaluation counters.
type Metrics interface {
	RuleEvaluated()
	RuleFired()
	RuleFailed(reason string)
	SetBreakerState(state int)
}

// ChannelAutomationFired is the WebSocket channel for fired rules.
const ChannelAutomationFired = "automation.fired"

// Failure reasons reported to Metrics.
const (
	reasonThreshold   = "threshold"
	reasonLookup      = "lookup"
	reasonComparable  = "not_comparable"
	reasonCondition   = "condition"
	reasonDevice      = "device"
	reasonPublish     = "publish"
	reasonBreakerOpen = "breaker_open"
	reasonPanic       = "panic"
)

// DefaultInterval is the evaluation period when none is configured.
const DefaultInterval = time.Second

// FiredEvent is broadcast when a rule publishes its command.
type FiredEvent struct {
	RuleID         string          `json:"rule_id"`
	Source         string          `json:"source"`
	Method         string          `json:"method"`
	InputParams    string          `json:"inputParams"`
	Value          float64         `json:"value"`
	Threshold      float64         `json:"threshold"`
	Condition      Condition       `json:"condition"`
	OutputDeviceID int             `json:"outputDeviceId"`
	Topic          string          `json:"topic"`
	Command        OutboundCommand `json:"command"`
	FiredAt        time.Time       `json:"fired_at"`
}

// Deps holds the evaluator's collaborators.
//
// Rules, Values, MQTT and Topic are required. Hub, Telemetry, Metrics and
// Logger may be nil.
type Deps struct {
	Rules  *Registry
	Values ValueReader
	MQTT   MQTTClient

	// Topic builds the command topic of a device, e.g. esp32/{id}/receiver.
	Topic func(deviceID int) string

	Hub       WSHub
	Telemetry Telemetry
	Metrics   Metrics
	Logger    Logger

	Interval time.Duration
	QoS      byte
	Breaker  config.BreakerConfig
}

// Evaluator runs the automation loop.
//
// Every interval it walks a snapshot of the registered rules. For each rule
// with a threshold it reads the source value, applies the condition and, when
// it holds, publishes the rule's command to the output device. A failing rule
// is logged and skipped; it never stops the loop.
//
// Publishing goes through a circuit breaker so a dead broker does not cost a
// publish timeout per rule per tick.
//
// Thread Safety: EvaluateOnce is safe for concurrent use; Run is meant to be
// called from a single goroutine.
type Evaluator struct {
	rules     *Registry
	values    ValueReader
	mqtt      MQTTClient
	topic     func(int) string
	hub       WSHub
	telemetry Telemetry
	metrics   Metrics
	logger    Logger
	interval  time.Duration
	qos       byte
	breaker   *gobreaker.CircuitBreaker

	mu    sync.Mutex
	ticks uint64
	fired uint64
	now   func() time.Time
}

// NewEvaluator creates an evaluator from its dependencies.
func NewEvaluator(deps Deps) *Evaluator {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	interval := deps.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	e := &Evaluator{
		rules:     deps.Rules,
		values:    deps.Values,
		mqtt:      deps.MQTT,
		topic:     deps.Topic,
		hub:       deps.Hub,
		telemetry: deps.Telemetry,
		metrics:   deps.Metrics,
		logger:    logger,
		interval:  interval,
		qos:       deps.QoS,
		now:       time.Now,
	}
	if deps.Breaker.Enabled {
		e.breaker = e.newBreaker(deps.Breaker)
	}
	return e
}

func (e *Evaluator) newBreaker(cfg config.BreakerConfig) *gobreaker.CircuitBreaker {
	fails := uint32(max(cfg.MaxFailures, 1)) //nolint:gosec // Bounded by config validation
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "automation-publish",
		Interval: cfg.Interval,
		Timeout:  cfg.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			e.logger.Warn("publish breaker state changed",
				"breaker", name, "from", from.String(), "to", to.String())
			if e.metrics != nil {
				e.metrics.SetBreakerState(int(to))
			}
		},
	})
}

// Run evaluates all rules every interval until ctx is cancelled.
func (e *Evaluator) Run(ctx context.Context) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	e.logger.Info("automation evaluator started", "interval", e.interval.String())
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("automation evaluator stopped")
			return
		case <-ticker.C:
			e.EvaluateOnce(ctx)
		}
	}
}

// EvaluateOnce evaluates every registered rule once.
//
// Returns the number of rules that fired.
func (e *Evaluator) EvaluateOnce(ctx context.Context) int {
	if e.rules == nil {
		return 0
	}

	fired := 0
	for _, rule := range e.rules.Snapshot() {
		if ctx.Err() != nil {
			break
		}
		ok, err := e.evaluate(rule)
		if err != nil {
			e.logger.Error("automation failed",
				"rule_id", rule.ID,
				"source", rule.Source,
				"method", rule.Method,
				"param", rule.InputParams,
				"error", err,
			)
			continue
		}
		if ok {
			fired++
		}
	}

	e.mu.Lock()
	e.ticks++
	e.fired += uint64(fired) //nolint:gosec // fired is never negative
	e.mu.Unlock()
	return fired
}

// Stats returns the number of completed passes and the total fired count.
func (e *Evaluator) Stats() (passes, fired uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ticks, e.fired
}

// evaluate checks one rule and publishes its command when the condition holds.
// Panics from drivers are turned into errors.
func (e *Evaluator) evaluate(rule Rule) (fired bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.fail(reasonPanic)
			fired, err = false, fmt.Errorf("panic: %v", r)
		}
	}()

	if e.metrics != nil {
		e.metrics.RuleEvaluated()
	}
	threshold, ok, err := rule.ThresholdValue()
	if !ok {
		return false, nil
	}
	if err != nil {
		e.fail(reasonThreshold)
		return false, err
	}

	raw, err := e.values.Lookup(rule.Source, rule.Method, rule.InputParams)
	if err != nil {
		e.fail(reasonLookup)
		return false, err
	}
	value, err := toFloat(raw)
	if err != nil {
		e.fail(reasonComparable)
		return false, err
	}
	holds, err := rule.Condition.Holds(value, threshold)
	if err != nil {
		e.fail(reasonCondition)
		return false, err
	}
	if !holds {
		return false, nil
	}

	deviceID, err := rule.OutputDevice()
	if err != nil {
		e.fail(reasonDevice)
		return false, err
	}
	topic := e.topic(deviceID)
	cmd := rule.Outbound()
	if err := e.publish(topic, cmd); err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			e.fail(reasonBreakerOpen)
		} else {
			e.fail(reasonPublish)
		}
		return false, fmt.Errorf("publishing to %s: %w", topic, err)
	}

	e.logger.Debug("automation fired",
		"rule_id", rule.ID,
		"value", value,
		"threshold", threshold,
		"condition", string(rule.Condition),
		"topic", topic,
	)
	if e.metrics != nil {
		e.metrics.RuleFired()
	}
	if e.telemetry != nil {
		e.telemetry.WriteAutomationFired(rule.ID, rule.Source, deviceID, value)
	}
	if e.hub != nil {
		e.hub.Broadcast(ChannelAutomationFired, FiredEvent{
			RuleID:         rule.ID,
			Source:         rule.Source,
			Method:         rule.Method,
			InputParams:    rule.InputParams,
			Value:          value,
			Threshold:      threshold,
			Condition:      rule.Condition,
			OutputDeviceID: deviceID,
			Topic:          topic,
			Command:        cmd,
			FiredAt:        e.now().UTC(),
		})
	}
	return true, nil
}

func (e *Evaluator) publish(topic string, cmd OutboundCommand) error {
	if e.mqtt == nil {
		return ErrPublishUnavailable
	}
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("marshalling command: %w", err)
	}

	send := func() (interface{}, error) {
		return nil, e.mqtt.Publish(topic, payload, e.qos, false)
	}
	if e.breaker == nil {
		_, err = send()
		return err
	}
	_, err = e.breaker.Execute(send)
	return err
}

func (e *Evaluator) fail(reason string) {
	if e.metrics != nil {
		e.metrics.RuleFailed(reason)
	}
}
