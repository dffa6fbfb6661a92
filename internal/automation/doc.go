// Package automation provides the threshold automation loop for Gray Logic Node.
//
// A rule watches one peripheral value and, when a condition holds, sends a
// fixed command to another node's command topic. Rules arrive as MQTT
// registration messages and live in memory for the lifetime of the process.
//
// Architecture:
//
//	┌───────────────────────────────────────────────────────┐
//	│               Evaluator (engine.go)                    │
//	│  Ticks every interval (default 1s)                     │
//	│  ┌──────────────┐    ┌──────────────┐                 │
//	│  │   Registry   │    │ ValueReader  │                 │
//	│  │(registry.go) │    │ (peripherals)│                 │
//	│  └──────────────┘    └──────────────┘                 │
//	│        │ snapshot           │ Lookup                  │
//	│        ▼                    ▼                         │
//	│  ┌──────────────────────────────────────────────┐    │
//	│  │  Per rule                                     │    │
//	│  │  1. Skip if no threshold                      │    │
//	│  │  2. Read [source][method][inputParams]        │    │
//	│  │  3. Compare with gt / lt / eq                 │    │
//	│  │  4. Publish command (circuit breaker)         │    │
//	│  │  5. Metrics, telemetry, WebSocket event       │    │
//	│  └──────────────────────────────────────────────┘    │
//	└───────────────────────────────────────────────────────┘
//
// # Rule wire format
//
//	{
//	  "automation": true,
//	  "source": "dht", "method": "read", "inputParams": "temperature",
//	  "threshold": 28, "condition": "gt",
//	  "source-output": "relay", "method-output": "on", "outputParams": "state",
//	  "outputDeviceId": 6
//	}
//
// When the condition holds the evaluator publishes
//
//	{"peripheral":"relay","method":"on","param":"state","commandId":1}
//
// to esp32/6/receiver.
//
// Registration stores the message as sent. threshold and outputDeviceId keep
// their JSON values and are converted on every pass: numbers and numeric
// strings are accepted, anything else fails that rule for the tick.
//
// # Comparison
//
// Numbers compare as float64 and booleans as 1/0; eq is exact equality.
// Other value types fail the rule for that tick.
//
// A rule is skipped only when its threshold is absent or null. A threshold of
// 0 is evaluated like any other value, so "gt 0" fires for every positive
// reading.
//
// # Thread Safety
//
// Registry and Evaluator are safe for concurrent use from multiple goroutines.
//
// # Usage
//
//	rules := automation.NewRegistry()
//	eval := automation.NewEvaluator(automation.Deps{
//	    Rules:  rules,
//	    Values: peripherals,
//	    MQTT:   client,
//	    Topic:  client.Topics().Receiver,
//	    QoS:    1,
//	})
//	go eval.Run(ctx)
package automation
