// Package agent runs a Gray Logic node.
//
// Once started the agent owns three activities:
//
//	esp32/{id}/receiver ──► command.Dispatcher ──► esp32/{id}/sender
//	ticker (1s)         ──► {"id":5,"times":n}  ──► esp32/online
//	automation.Evaluator.Run ──► esp32/{outputDeviceId}/receiver
//
// Heartbeat and automation loops share one context; the dispatcher runs on
// the MQTT client's callback goroutines.
package agent
