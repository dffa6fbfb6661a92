// Package influxdb provides InfluxDB connectivity for Gray Logic Node.
//
// It wraps the official influxdb-client-go v2 library with node-specific
// patterns for connection management, telemetry writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Peripheral readings returned by driver methods
//   - Automation rule firings
//   - Handled commands and heartbeats
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    Enabled: true,
//	    URL:     "http://localhost:8086",
//	    Token:   "your-token",
//	    Org:     "graylogic",
//	    Bucket:  "node",
//	}
//
//	client, err := influxdb.Connect(ctx, cfg, 5)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteReading("dht", "read", map[string]any{"temperature": 21.5})
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking; batch errors reach the SetOnError callback.
// Connection and health check errors are returned directly.
package influxdb
