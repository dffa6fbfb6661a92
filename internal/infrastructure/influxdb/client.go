package influxdb

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

const (
	// pingTimeout bounds the startup ping and each HealthCheck.
	pingTimeout = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 // seconds
)

// Client writes node telemetry to InfluxDB v2.
//
// Points go through the non-blocking batched write API and all carry the
// node's device_id as a default tag. Writes after Close are dropped.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	closed   atomic.Bool

	errMu   sync.RWMutex
	onError func(err error)
}

// Connect pings the server and opens the write API.
//
// Parameters:
//   - ctx: Bounds the startup ping
//   - cfg: InfluxDB configuration; BatchSize and FlushInterval fall back to
//     100 points and 10 s when not positive
//   - deviceID: Node id written as the device_id tag
//
// Returns:
//   - *Client: Client ready for writes
//   - error: ErrDisabled when telemetry is off, ErrConnectionFailed when the
//     server does not answer the ping
func Connect(ctx context.Context, cfg config.InfluxDBConfig, deviceID int) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg, deviceID))

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(pingCtx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
	}
	go c.forwardErrors(c.writeAPI.Errors())
	return c, nil
}

// clientOptions maps node config onto the client's batching options.
func clientOptions(cfg config.InfluxDBConfig, deviceID int) *influxdb2.Options {
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	flush := cfg.FlushInterval
	if flush <= 0 {
		flush = defaultFlushInterval
	}

	// #nosec G115 -- both values are positive here
	return influxdb2.DefaultOptions().
		SetBatchSize(uint(batch)).
		SetFlushInterval(uint(flush)*uint(time.Second/time.Millisecond)).
		AddDefaultTag("device_id", strconv.Itoa(deviceID))
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

// forwardErrors hands asynchronous write errors to the OnError callback.
// It returns when the write API is closed.
func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		c.errMu.RLock()
		callback := c.onError
		c.errMu.RUnlock()
		if callback != nil {
			callback(err)
		}
	}
}

// SetOnError sets the callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.errMu.Lock()
	c.onError = callback
	c.errMu.Unlock()
}

// IsConnected reports whether the client is open. A nil client is not.
func (c *Client) IsConnected() bool {
	return c != nil && c.client != nil && !c.closed.Load()
}

// HealthCheck pings the server.
//
// Returns:
//   - error: ErrNotConnected after Close, or the ping failure
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(pingCtx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// Flush sends buffered points and blocks until they are written.
// It does nothing after Close.
func (c *Client) Flush() {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}

// Close flushes pending points and closes the client. Safe to call more
// than once and on a nil client.
func (c *Client) Close() error {
	if c == nil || c.client == nil || !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}
