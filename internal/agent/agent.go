package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/mqtt"
)

// MQTTClient is the part of the MQTT client the agent uses.
// *mqtt.Client satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// Handler processes messages from the command topic.
type Handler interface {
	Handle(topic string, payload []byte) error
}

// Evaluator is the automation loop.
type Evaluator interface {
	Run(ctx context.Context)
	Stats() (passes, fired uint64)
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	Broadcast(channel string, payload any)
}

// Metrics receives heartbeat counters.
type Metrics interface {
	HeartbeatPublished(ok bool)
}

// Telemetry records heartbeats.
type Telemetry interface {
	WriteHeartbeat(times int)
}

// Logger defines the logging interface used by the Agent.
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

// ChannelHeartbeat is the WebSocket channel for heartbeats.
const ChannelHeartbeat = "heartbeat"

// DefaultHeartbeatInterval is used when Deps.HeartbeatInterval is zero.
const DefaultHeartbeatInterval = time.Second

// Heartbeat is the payload published on the shared online topic.
type Heartbeat struct {
	ID    int `json:"id"`
	Times int `json:"times"`
}

// Deps holds the agent's collaborators.
//
// MQTT and Dispatcher are required. Evaluator, Hub, Metrics, Telemetry and
// Logger may be nil.
type Deps struct {
	DeviceID   int
	Topics     mqtt.Topics
	MQTT       MQTTClient
	Dispatcher Handler
	Evaluator  Evaluator

	Hub       WSHub
	Metrics   Metrics
	Telemetry Telemetry
	Logger    Logger

	HeartbeatInterval time.Duration
	QoS               byte
}

// Agent ties the node together: it routes the command topic to the
// dispatcher and runs the heartbeat and automation loops.
//
// Lifecycle: New, then Start(ctx), then Stop. Start may be called again
// after Stop.
type Agent struct {
	deviceID   int
	topics     mqtt.Topics
	mqtt       MQTTClient
	dispatcher Handler
	evaluator  Evaluator
	hub        WSHub
	metrics    Metrics
	telemetry  Telemetry
	logger     Logger
	interval   time.Duration
	qos        byte

	heartbeats atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// New creates an agent. It does not touch the broker until Start.
func New(deps Deps) *Agent {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	interval := deps.HeartbeatInterval
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	return &Agent{
		deviceID:   deps.DeviceID,
		topics:     deps.Topics,
		mqtt:       deps.MQTT,
		dispatcher: deps.Dispatcher,
		evaluator:  deps.Evaluator,
		hub:        deps.Hub,
		metrics:    deps.Metrics,
		telemetry:  deps.Telemetry,
		logger:     logger,
		interval:   interval,
		qos:        deps.QoS,
	}
}

// Start subscribes the dispatcher to the node's command topic and launches
// the heartbeat and automation goroutines. It returns once they are running.
//
// The MQTT client restores the subscription after a reconnect.
//
// Returns:
//   - error: ErrAlreadyRunning, or ErrSubscribeFailed wrapping the cause
func (a *Agent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return ErrAlreadyRunning
	}

	topic := a.topics.Receiver(a.deviceID)
	if err := a.mqtt.Subscribe(topic, a.qos, a.dispatcher.Handle); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSubscribeFailed, topic, err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel
	a.running = true

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.heartbeatLoop(runCtx)
	}()

	if a.evaluator != nil {
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			a.evaluator.Run(runCtx)
		}()
	}

	a.logger.Info("agent started",
		"device_id", a.deviceID,
		"receiver", topic,
		"heartbeat_interval", a.interval.String(),
	)
	return nil
}

// Stop cancels the background loops, waits for them to exit and drops the
// command subscription. It is a no-op when the agent is not running.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return
	}
	a.cancel()
	a.wg.Wait()
	a.running = false

	topic := a.topics.Receiver(a.deviceID)
	if err := a.mqtt.Unsubscribe(topic); err != nil {
		a.logger.Warn("unsubscribing command topic", "topic", topic, "error", err)
	}
	a.logger.Info("agent stopped", "heartbeats", a.HeartbeatCount())
}

// HeartbeatCount returns the number of heartbeat attempts so far.
func (a *Agent) HeartbeatCount() int {
	return int(a.heartbeats.Load())
}

// EvaluatorStats returns the automation loop counters, or zeros when no
// evaluator is configured.
func (a *Agent) EvaluatorStats() (passes, fired uint64) {
	if a.evaluator == nil {
		return 0, 0
	}
	return a.evaluator.Stats()
}

func (a *Agent) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.beat()
		}
	}
}

// beat publishes one heartbeat. The counter advances whether or not the
// publish succeeds.
func (a *Agent) beat() {
	times := int(a.heartbeats.Load())
	defer a.heartbeats.Add(1)

	hb := Heartbeat{ID: a.deviceID, Times: times}
	payload, err := json.Marshal(hb)
	if err == nil {
		err = a.mqtt.Publish(a.topics.Online(), payload, a.qos, false)
	}

	if a.metrics != nil {
		a.metrics.HeartbeatPublished(err == nil)
	}
	if err != nil {
		a.logger.Warn("heartbeat publish failed", "times", times, "error", err)
		return
	}

	a.logger.Debug("heartbeat published", "times", times)
	if a.telemetry != nil {
		a.telemetry.WriteHeartbeat(times)
	}
	if a.hub != nil {
		a.hub.Broadcast(ChannelHeartbeat, hb)
	}
}
