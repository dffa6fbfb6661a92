// Package metrics exposes the node's Prometheus collectors.
//
// Collectors live on a private registry so tests can build independent
// instances and the /metrics endpoint only reports node series plus the Go
// runtime and process collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graynode"

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds every node collector.
//
// All methods are nil-safe so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	evaluations     prometheus.Counter
	fired           prometheus.Counter
	ruleErrors      *prometheus.CounterVec
	rules           prometheus.Gauge
	heartbeats      *prometheus.CounterVec
	breakerState    prometheus.Gauge
	mqttConnected   prometheus.Gauge
}

// New creates the collectors and registers them on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commands_total",
			Help:      "Inbound command messages by kind and result.",
		}, []string{"kind", "result"}),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent handling an inbound command message.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"kind"}),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "automation_evaluations_total",
			Help:      "Automation rule evaluations.",
		}),
		fired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "automation_fired_total",
			Help:      "Automation rules whose condition held and whose command was published.",
		}),
		ruleErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "automation_errors_total",
			Help:      "Automation rule failures by reason.",
		}, []string{"reason"}),
		rules: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "automation_rules",
			Help:      "Registered automation rules.",
		}),
		heartbeats: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "heartbeats_total",
			Help:      "Heartbeat publish attempts by result.",
		}, []string{"result"}),
		breakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "publish_breaker_state",
			Help:      "Automation publish breaker state (0 closed, 1 half-open, 2 open).",
		}),
		mqttConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "mqtt_connected",
			Help:      "1 while the broker connection is up.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.commands,
		m.commandDuration,
		m.evaluations,
		m.fired,
		m.ruleErrors,
		m.rules,
		m.heartbeats,
		m.breakerState,
		m.mqttConnected,
	)
	return m
}

// Handler returns the Prometheus exposition handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// CommandHandled records one inbound command.
func (m *Metrics) CommandHandled(kind string, ok bool, seconds float64) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind, result(ok)).Inc()
	m.commandDuration.WithLabelValues(kind).Observe(seconds)
}

// RuleEvaluated counts one rule evaluation.
func (m *Metrics) RuleEvaluated() {
	if m == nil {
		return
	}
	m.evaluations.Inc()
}

// RuleFired counts one published automation command.
func (m *Metrics) RuleFired() {
	if m == nil {
		return
	}
	m.fired.Inc()
}

// RuleFailed counts one rule failure.
func (m *Metrics) RuleFailed(reason string) {
	if m == nil {
		return
	}
	m.ruleErrors.WithLabelValues(reason).Inc()
}

// SetRuleCount sets the registered rule gauge.
func (m *Metrics) SetRuleCount(n int) {
	if m == nil {
		return
	}
	m.rules.Set(float64(n))
}

// HeartbeatPublished records one heartbeat attempt.
func (m *Metrics) HeartbeatPublished(ok bool) {
	if m == nil {
		return
	}
	m.heartbeats.WithLabelValues(result(ok)).Inc()
}

// SetBreakerState records the publish breaker state as 0, 1 or 2.
func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.breakerState.Set(float64(state))
}

// SetMQTTConnected records broker connectivity.
func (m *Metrics) SetMQTTConnected(connected bool) {
	if m == nil {
		return
	}
	v := 0.0
	if connected {
		v = 1
	}
	m.mqttConnected.Set(v)
}

func result(ok bool) string {
	if ok {
		return ResultOK
	}
	return ResultError
}
