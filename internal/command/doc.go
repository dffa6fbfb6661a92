// Package command dispatches messages received on the node's command topic
// (esp32/{id}/receiver).
//
// # Message shapes
//
// Automation registration (stored, no reply):
//
//	{"automation": true, "source": "dht", "method": "read", ...}
//
// Pin query:
//
//	{"pins": true, "commandId": 12}
//	→ {"pins": {"relay": {"pin": 5}, ...}, "status": true, "commandId": 12}
//
// Method invocation:
//
//	{"peripheral": "relay", "method": "on", "param": "state", "commandId": 13}
//	→ {"peripheral": "relay", "method": "on", "value": true, "status": true, "commandId": 13}
//
// Invocations may carry "args" for methods that take input:
//
//	{"peripheral": "servo_motor", "method": "write_angle", "args": {"angle": 90}, "param": "angle", "commandId": 14}
//
// Failures are answered on the reply topic when a commandId was given:
//
//	{"status": false, "error": "peripheral: unknown peripheral: \"fan\"", "commandId": 15}
//
// # Usage
//
//	d := command.NewDispatcher(command.Deps{
//	    Peripherals: registry,
//	    Rules:       rules,
//	    MQTT:        client,
//	    ReplyTopic:  client.Topics().Sender(5),
//	    QoS:         1,
//	})
//	client.Subscribe(client.Topics().Receiver(5), 1, d.Handle)
package command
