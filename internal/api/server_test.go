package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/gray-logic-node/internal/automation"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-node/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-node/internal/peripheral"
)

// ─── Fixtures ──────────────────────────────────────────────────────

type mockConn struct{ connected atomic.Bool }

func (m *mockConn) IsConnected() bool { return m.connected.Load() }

type mockLoops struct{}

func (mockLoops) HeartbeatCount() int { return 7 }
func (mockLoops) EvaluatorStats() (uint64, uint64) { return 12, 3 }

type testEnv struct {
	srv   *Server
	rules *automation.Registry
	mqtt  *mockConn
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
}

func testWSConfig() config.WebSocketConfig {
	return config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}
}

// testServer builds a Server over a real peripheral registry (LED, relay on
// GPIO 5) and an empty rule store. The hub is running but no listener is bound.
func testServer(t *testing.T) *testEnv {
	t.Helper()

	periphs, err := peripheral.NewRegistry([]config.PeripheralConfig{
		{Name: "internal_led", Kind: peripheral.KindInternalLED},
		{Name: "relay", Kind: peripheral.KindRelay, Pins: map[string]int{"pin": 5}, Simulate: true},
	}, peripheral.NewSimBackend())
	if err != nil {
		t.Fatalf("peripheral.NewRegistry: %v", err)
	}

	env := &testEnv{rules: automation.NewRegistry(), mqtt: &mockConn{}}
	env.mqtt.connected.Store(true)

	log := testLogger()
	srv, err := New(Deps{
		Config: config.APIConfig{
			Host:     "127.0.0.1",
			Port:     0,
			Timeouts: config.APITimeoutConfig{Read: 5, Write: 5, Idle: 5},
		},
		WS:          testWSConfig(),
		Device:      config.DeviceConfig{ID: 5, Name: "bench"},
		Logger:      log,
		Peripherals: periphs,
		Rules:       env.rules,
		MQTT:        env.mqtt,
		Loops:       mockLoops{},
		Version:     "test",
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	srv.hub = NewHub(srv.wsCfg, log)
	go srv.hub.Run(ctx)

	env.srv = srv
	return env
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("unmarshal %q: %v", w.Body.String(), err)
	}
}

// ─── Construction ──────────────────────────────────────────────────

func TestNew_RequiresDeps(t *testing.T) {
	log := testLogger()
	periphs, _ := peripheral.NewRegistry(nil, peripheral.NewSimBackend())
	rules := automation.NewRegistry()

	tests := []struct {
		name string
		deps Deps
	}{
		{"no logger", Deps{Peripherals: periphs, Rules: rules}},
		{"no peripherals", Deps{Logger: log, Rules: rules}},
		{"no rules", Deps{Logger: log, Peripherals: periphs}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() error = nil, want error")
			}
		})
	}
}

// ─── Health Endpoint Tests ─────────────────────────────────────────

func TestHealth(t *testing.T) {
	env := testServer(t)
	w := get(t, env.srv.buildRouter(), "/api/v1/health")

	if w.Code != http.StatusOK {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var resp map[string]any
	decode(t, w, &resp)
	if resp["status"] != "ok" {
		t.Errorf("status = %v, want ok", resp["status"])
	}
	if resp["version"] != "test" {
		t.Errorf("version = %v, want test", resp["version"])
	}
}

func TestHealth_DegradedWithoutBroker(t *testing.T) {
	env := testServer(t)
	env.mqtt.connected.Store(false)

	w := get(t, env.srv.buildRouter(), "/api/v1/health")
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("health status = %d, want %d", w.Code, http.StatusServiceUnavailable)
	}
	var resp map[string]any
	decode(t, w, &resp)
	if resp["status"] != "degraded" {
		t.Errorf("status = %v, want degraded", resp["status"])
	}
}

// ─── Middleware Tests ──────────────────────────────────────────────

func TestRequestID(t *testing.T) {
	env := testServer(t)
	router := env.srv.buildRouter()

	w := get(t, router, "/api/v1/health")
	if w.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header to be set")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("X-Request-ID", "client-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	if got := w.Header().Get("X-Request-ID"); got != "client-123" {
		t.Errorf("X-Request-ID = %q, want client-123", got)
	}
}

func TestCORS(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"empty list allows all", nil, "http://panel.local", "http://panel.local"},
		{"listed origin", []string{"http://a"}, "http://a", "http://a"},
		{"wildcard", []string{"*"}, "http://b", "http://b"},
		{"unlisted origin", []string{"http://a"}, "http://b", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := testServer(t)
			env.srv.cfg.CORS.AllowedOrigins = tt.allowed

			req := httptest.NewRequest(http.MethodOptions, "/api/v1/health", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			env.srv.buildRouter().ServeHTTP(w, req)

			if w.Code != http.StatusNoContent {
				t.Errorf("preflight status = %d, want %d", w.Code, http.StatusNoContent)
			}
			if got := w.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("ACAO = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRecovery(t *testing.T) {
	env := testServer(t)
	h := env.srv.recoveryMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	w := get(t, h, "/")
	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	var e Error
	decode(t, w, &e)
	if e.Code != ErrCodeInternal {
		t.Errorf("code = %q, want %q", e.Code, ErrCodeInternal)
	}
}

func TestNotFound(t *testing.T) {
	env := testServer(t)
	if w := get(t, env.srv.buildRouter(), "/api/v1/nonexistent"); w.Code != http.StatusNotFound {
		t.Errorf("unknown route status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

// ─── Node Endpoints ────────────────────────────────────────────────

func TestPeripherals(t *testing.T) {
	env := testServer(t)
	w := get(t, env.srv.buildRouter(), "/api/v1/peripherals")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var resp struct {
		Peripherals []peripheral.Info `json:"peripherals"`
		Count       int               `json:"count"`
	}
	decode(t, w, &resp)
	if resp.Count != 2 || len(resp.Peripherals) != 2 {
		t.Fatalf("count = %d (%d entries), want 2", resp.Count, len(resp.Peripherals))
	}
	for _, p := range resp.Peripherals {
		if p.Name == "relay" && p.Pins["pin"] != 5 {
			t.Errorf("relay pins = %v, want pin 5", p.Pins)
		}
	}
}

func TestPins(t *testing.T) {
	env := testServer(t)
	w := get(t, env.srv.buildRouter(), "/api/v1/pins")

	var resp struct {
		Pins map[string]map[string]int `json:"pins"`
	}
	decode(t, w, &resp)
	if resp.Pins["relay"]["pin"] != 5 {
		t.Errorf("pins[relay] = %v, want pin 5", resp.Pins["relay"])
	}
	if led, ok := resp.Pins["internal_led"]; !ok || len(led) != 0 {
		t.Errorf("pins[internal_led] = %v (present %v), want empty map", led, ok)
	}
}

func TestAutomations(t *testing.T) {
	env := testServer(t)
	router := env.srv.buildRouter()

	rule, err := automation.ParseRule([]byte(`{"automation":true,"source":"dht","method":"read","inputParams":"temperature","threshold":30,"condition":"gt","source-output":"relay","method-output":"on","outputDeviceId":7}`))
	if err != nil {
		t.Fatalf("ParseRule: %v", err)
	}
	stored := env.rules.Add(rule)

	w := get(t, router, "/api/v1/automations")
	var list struct {
		Automations []automation.Rule `json:"automations"`
		Count       int               `json:"count"`
	}
	decode(t, w, &list)
	if list.Count != 1 || list.Automations[0].ID != stored.ID {
		t.Fatalf("automations = %+v, want the stored rule", list)
	}

	w = get(t, router, "/api/v1/automations/"+stored.ID)
	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", w.Code)
	}
	var got automation.Rule
	decode(t, w, &got)
	if got.Source != "dht" || got.OutputDeviceID != 7.0 {
		t.Errorf("rule = %+v", got)
	}

	w = get(t, router, "/api/v1/automations/missing")
	if w.Code != http.StatusNotFound {
		t.Errorf("missing rule status = %d, want 404", w.Code)
	}
}

func TestStatus(t *testing.T) {
	env := testServer(t)
	w := get(t, env.srv.buildRouter(), "/api/v1/status")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var st NodeStatus
	decode(t, w, &st)
	if st.DeviceID != 5 || st.DeviceName != "bench" {
		t.Errorf("device = %d/%q, want 5/bench", st.DeviceID, st.DeviceName)
	}
	if !st.MQTT.Connected {
		t.Error("mqtt.connected = false, want true")
	}
	if st.Peripherals != 2 {
		t.Errorf("peripherals = %d, want 2", st.Peripherals)
	}
	if st.Heartbeats != 7 || st.Automation.Passes != 12 || st.Automation.Fired != 3 {
		t.Errorf("loop stats = %d/%+v", st.Heartbeats, st.Automation)
	}
	if st.Runtime.Goroutines == 0 {
		t.Error("runtime.goroutines = 0")
	}
}

func TestMetricsRoute(t *testing.T) {
	env := testServer(t)
	if w := get(t, env.srv.buildRouter(), "/metrics"); w.Code != http.StatusNotFound {
		t.Errorf("/metrics without handler = %d, want 404", w.Code)
	}

	env.srv.metrics = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		io.WriteString(w, "graynode_up 1\n") //nolint:errcheck // test handler
	})
	w := get(t, env.srv.buildRouter(), "/metrics")
	if !strings.Contains(w.Body.String(), "graynode_up 1") {
		t.Errorf("/metrics body = %q", w.Body.String())
	}
}

// ─── WebSocket Hub Tests ───────────────────────────────────────────

func newHubClient(hub *Hub, channels ...string) *WSClient {
	c := &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: make(map[string]struct{}),
	}
	for _, ch := range channels {
		c.subscriptions[ch] = struct{}{}
	}
	hub.Register(c)
	return c
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())

	fired := newHubClient(hub, "automation.fired")
	all := newHubClient(hub, WSChannelAll)
	other := newHubClient(hub, "peripheral.invoked")

	hub.Broadcast("automation.fired", map[string]any{"rule_id": "r1", "value": 31.5})

	for name, c := range map[string]*WSClient{"subscribed": fired, "wildcard": all} {
		select {
		case msg := <-c.send:
			var ws WSMessage
			if err := json.Unmarshal(msg, &ws); err != nil {
				t.Fatalf("%s: unmarshal: %v", name, err)
			}
			if ws.Type != WSTypeEvent || ws.EventType != "automation.fired" {
				t.Errorf("%s: got %s/%s", name, ws.Type, ws.EventType)
			}
			if !strings.Contains(string(ws.Payload), `"rule_id":"r1"`) {
				t.Errorf("%s: payload = %s", name, ws.Payload)
			}
		default:
			t.Errorf("%s client received nothing", name)
		}
	}

	select {
	case <-other.send:
		t.Error("unsubscribed client should not receive message")
	default:
	}
}

func TestHub_ClientCountAndNil(t *testing.T) {
	hub := NewHub(testWSConfig(), testLogger())
	c := newHubClient(hub)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}
	hub.Unregister(c)
	hub.Unregister(c) // second call must not double-close
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}

	var nilHub *Hub
	nilHub.Broadcast("x", nil)
	if nilHub.ClientCount() != 0 {
		t.Error("nil hub ClientCount() != 0")
	}
}

// ─── Server Lifecycle + WebSocket Integration ──────────────────────

// startServer binds the server on an ephemeral port.
func startServer(t *testing.T) *testEnv {
	t.Helper()
	env := testServer(t)
	env.srv.hub = nil // let Start create and run its own hub

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		env.srv.Close() //nolint:errcheck // test cleanup
		cancel()
	})
	if err := env.srv.Start(ctx); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	return env
}

func TestServer_StartAndClose(t *testing.T) {
	env := testServer(t)
	if err := env.srv.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck() before Start = nil, want error")
	}
	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() before Start = %v, want nil", err)
	}

	env = startServer(t)
	addr := env.srv.Addr()
	if addr == "" {
		t.Fatal("Addr() empty after Start")
	}
	if err := env.srv.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() = %v", err)
	}

	resp, err := http.Get("http://" + addr + "/api/v1/health")
	if err != nil {
		t.Fatalf("health request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d, want 200", resp.StatusCode)
	}

	if err := env.srv.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
	if _, err := http.Get("http://" + addr + "/api/v1/health"); err == nil {
		t.Error("server still responding after Close()")
	}
}

func dialWS(t *testing.T, addr string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial("ws://"+addr+"/api/v1/ws", nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	//nolint:errcheck // test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	return ws
}

func roundTrip(t *testing.T, ws *websocket.Conn, frame string) WSMessage {
	t.Helper()
	if err := ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
		t.Fatalf("write %s: %v", frame, err)
	}
	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read reply to %s: %v", frame, err)
	}
	return resp
}

func TestWebSocket_Protocol(t *testing.T) {
	env := startServer(t)
	ws := dialWS(t, env.srv.Addr())

	tests := []struct {
		name     string
		frame    string
		wantType string
		wantID   string
		wantBody string
	}{
		{"subscribe", `{"type":"subscribe","id":"s1","payload":{"channels":["automation.fired","heartbeat"]}}`, WSTypeResponse, "s1", `"subscribed"`},
		{"unsubscribe", `{"type":"unsubscribe","id":"u1","payload":{"channels":["heartbeat"]}}`, WSTypeResponse, "u1", `"unsubscribed"`},
		{"ping", `{"type":"ping","id":"p1"}`, WSTypePong, "p1", ""},
		{"empty channels", `{"type":"subscribe","id":"s2","payload":{"channels":[]}}`, WSTypeError, "s2", ""},
		{"unknown type", `{"type":"dance","id":"d1"}`, WSTypeError, "d1", "unknown message type"},
		{"invalid json", `not json`, WSTypeError, "", "invalid JSON"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := roundTrip(t, ws, tt.frame)
			if resp.Type != tt.wantType {
				t.Errorf("type = %s, want %s", resp.Type, tt.wantType)
			}
			if resp.ID != tt.wantID {
				t.Errorf("id = %q, want %q", resp.ID, tt.wantID)
			}
			if tt.wantBody != "" && !strings.Contains(string(resp.Payload), tt.wantBody) {
				t.Errorf("payload = %s, want it to contain %s", resp.Payload, tt.wantBody)
			}
		})
	}
}

func TestWebSocket_Broadcast(t *testing.T) {
	env := startServer(t)
	ws := dialWS(t, env.srv.Addr())

	roundTrip(t, ws, `{"type":"subscribe","id":"s1","payload":{"channels":["peripheral.invoked"]}}`)

	env.srv.Hub().Broadcast("heartbeat", map[string]int{"times": 1})
	env.srv.Hub().Broadcast("peripheral.invoked", map[string]string{"peripheral": "relay"})

	var resp WSMessage
	if err := ws.ReadJSON(&resp); err != nil {
		t.Fatalf("read broadcast: %v", err)
	}
	if resp.Type != WSTypeEvent || resp.EventType != "peripheral.invoked" {
		t.Errorf("broadcast = %s/%s, want event/peripheral.invoked", resp.Type, resp.EventType)
	}
	if env.srv.Hub().ClientCount() != 1 {
		t.Errorf("hub client count = %d, want 1", env.srv.Hub().ClientCount())
	}
}
