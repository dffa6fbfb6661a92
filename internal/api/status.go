package api

import (
	"net/http"
	"runtime"
	"time"
)

// NodeStatus is the body of GET /api/v1/status.
type NodeStatus struct {
	Timestamp     string          `json:"timestamp"`
	Version       string          `json:"version"`
	DeviceID      int             `json:"device_id"`
	DeviceName    string          `json:"device_name,omitempty"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Runtime       RuntimeStatus   `json:"runtime"`
	MQTT          MQTTStatus      `json:"mqtt"`
	WebSocket     WSStatus        `json:"websocket"`
	Peripherals   int             `json:"peripherals"`
	Automation    AutomationStats `json:"automation"`
	Heartbeats    int             `json:"heartbeats"`
}

// RuntimeStatus contains Go runtime statistics.
type RuntimeStatus struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTStatus reports broker connectivity.
type MQTTStatus struct {
	Connected bool `json:"connected"`
}

// WSStatus reports WebSocket hub statistics.
type WSStatus struct {
	ConnectedClients int `json:"connected_clients"`
}

// AutomationStats summarises the rule store and evaluator.
type AutomationStats struct {
	Rules  int    `json:"rules"`
	Passes uint64 `json:"passes"`
	Fired  uint64 `json:"fired"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	st := NodeStatus{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		DeviceID:      s.device.ID,
		DeviceName:    s.device.Name,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeStatus{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(mem.Alloc) / 1024 / 1024,
			NumGC:         mem.NumGC,
		},
		WebSocket:   WSStatus{ConnectedClients: s.hub.ClientCount()},
		Peripherals: len(s.peripherals.Describe()),
		Automation:  AutomationStats{Rules: s.rules.Len()},
	}

	if s.mqtt != nil {
		st.MQTT.Connected = s.mqtt.IsConnected()
	}
	if s.loops != nil {
		st.Heartbeats = s.loops.HeartbeatCount()
		st.Automation.Passes, st.Automation.Fired = s.loops.EvaluatorStats()
	}

	writeJSON(w, http.StatusOK, st)
}
