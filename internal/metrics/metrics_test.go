package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.CommandHandled("invoke", true, 0.002)
	m.CommandHandled("invoke", false, 0.001)
	m.CommandHandled("pins", true, 0.001)
	m.RuleEvaluated()
	m.RuleEvaluated()
	m.RuleFired()
	m.RuleFailed("lookup")
	m.HeartbeatPublished(true)
	m.SetRuleCount(3)
	m.SetBreakerState(2)
	m.SetMQTTConnected(true)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"invoke ok", testutil.ToFloat64(m.commands.WithLabelValues("invoke", ResultOK)), 1},
		{"invoke error", testutil.ToFloat64(m.commands.WithLabelValues("invoke", ResultError)), 1},
		{"pins ok", testutil.ToFloat64(m.commands.WithLabelValues("pins", ResultOK)), 1},
		{"evaluations", testutil.ToFloat64(m.evaluations), 2},
		{"fired", testutil.ToFloat64(m.fired), 1},
		{"errors", testutil.ToFloat64(m.ruleErrors.WithLabelValues("lookup")), 1},
		{"heartbeats", testutil.ToFloat64(m.heartbeats.WithLabelValues(ResultOK)), 1},
		{"rules", testutil.ToFloat64(m.rules), 3},
		{"breaker", testutil.ToFloat64(m.breakerState), 2},
		{"mqtt", testutil.ToFloat64(m.mqttConnected), 1},
	}

	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.RuleFired()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics error = %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "graynode_automation_fired_total 1") {
		t.Errorf("exposition missing fired counter:\n%s", body)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("exposition missing Go runtime collector")
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics

	m.CommandHandled("invoke", true, 0)
	m.RuleEvaluated()
	m.RuleFired()
	m.RuleFailed("x")
	m.SetRuleCount(1)
	m.HeartbeatPublished(false)
	m.SetBreakerState(1)
	m.SetMQTTConnected(true)

	if m.Registry() != nil {
		t.Error("nil Metrics returned a registry")
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("nil handler status = %d, want 404", rec.Code)
	}
}
