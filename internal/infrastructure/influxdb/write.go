package influxdb

import (
	"strconv"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names written by the node.
const (
	MeasurementReading    = "peripheral_reading"
	MeasurementAutomation = "automation_fired"
	MeasurementCommand    = "command"
	MeasurementHeartbeat  = "heartbeat"
)

// WriteReading writes the values returned by a peripheral method.
//
// Numeric and boolean values become fields (booleans as 1/0); other values
// are skipped. Nothing is written if no value is numeric.
//
// Example:
//
//	client.WriteReading("dht", "read", map[string]any{"temperature": 21.5, "humidity": 40.0})
func (c *Client) WriteReading(peripheral, method string, values map[string]any) {
	fields := make(map[string]interface{}, len(values))
	for k, v := range values {
		if f, ok := numericField(v); ok {
			fields[k] = f
		}
	}
	if len(fields) == 0 {
		return
	}
	c.write(MeasurementReading, map[string]string{
		"peripheral": peripheral,
		"method":     method,
	}, fields)
}

// WriteAutomationFired records a rule whose command was published, with the
// input value that satisfied its condition.
func (c *Client) WriteAutomationFired(ruleID, source string, outputDeviceID int, value float64) {
	c.write(MeasurementAutomation, map[string]string{
		"rule_id":          ruleID,
		"source":           source,
		"output_device_id": strconv.Itoa(outputDeviceID),
	}, map[string]interface{}{"value": value})
}

// WriteCommand records one handled inbound command.
//
// Parameters:
//   - kind: Message shape ("invoke", "pins", "automation")
//   - ok: Whether the command succeeded
//   - latency: Time spent handling it
func (c *Client) WriteCommand(kind string, ok bool, latency time.Duration) {
	c.write(MeasurementCommand, map[string]string{
		"kind": kind,
		"ok":   strconv.FormatBool(ok),
	}, map[string]interface{}{
		"latency_ms": float64(latency.Microseconds()) / 1000,
	})
}

// WriteHeartbeat records the heartbeat counter.
func (c *Client) WriteHeartbeat(times int) {
	c.write(MeasurementHeartbeat, nil, map[string]interface{}{"times": times})
}

// write queues one point stamped now. The device_id tag is added by the
// client's default tags.
func (c *Client) write(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, time.Now()))
}

// numericField converts a driver value into an InfluxDB field value.
func numericField(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
