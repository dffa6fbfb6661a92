// Package api serves the node's read-only HTTP status API and WebSocket
// event stream.
//
// Routes:
//
//	GET /api/v1/health             liveness; 503 while the broker is unreachable
//	GET /api/v1/status             uptime, runtime, MQTT, rule and loop counters
//	GET /api/v1/peripherals        configured peripherals with kinds, pins and methods
//	GET /api/v1/pins               the same pin map a {"pins": true} command returns
//	GET /api/v1/automations        registered rules in registration order
//	GET /api/v1/automations/{id}   one rule
//	GET /api/v1/ws                 WebSocket event stream
//	GET /metrics                   Prometheus exposition (when configured)
//
// Commands are not accepted over HTTP; the MQTT receiver topic is the only
// control surface.
//
// # WebSocket
//
// Clients send {"type":"subscribe","payload":{"channels":["automation.fired"]}}
// (or "*" for everything) and then receive
// {"type":"event","event_type":"automation.fired","timestamp":...,"payload":{...}}.
package api
