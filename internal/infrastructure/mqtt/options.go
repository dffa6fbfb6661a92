package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// Connection constants.
const (
	// defaultConnectTimeout is the maximum time to wait for one connection attempt.
	defaultConnectTimeout = 10 * time.Second

	// defaultPublishTimeout is the maximum time to wait for publish acknowledgment.
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is the time to wait for pending operations on disconnect.
	defaultDisconnectQuiesce = 1000 // milliseconds

	// defaultKeepAlive is the keepalive interval for the connection.
	defaultKeepAlive = 60 * time.Second

	// maxQoS is the maximum QoS level supported.
	maxQoS = 2

	// tlsMinVersion is the minimum TLS version for secure connections.
	tlsMinVersion = tls.VersionTLS12
)

// Device status values carried on the status topic.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// StatusMessage is the retained payload on a device's status topic.
type StatusMessage struct {
	ID     int    `json:"id"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// buildClientOptions creates paho MQTT options from node config.
//
// This configures:
//   - Broker URL (tcp:// or ssl:// based on TLS setting)
//   - Client ID for identification
//   - Authentication credentials (if provided)
//   - Auto-reconnect with exponential backoff once connected
//   - TLS configuration (if enabled)
//   - Clean session mode
//   - Unordered handler dispatch
//
// Initial connect retries are driven by connectBackOff rather than paho's
// ConnectRetry so each failed attempt surfaces as an error.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	// Broker URL
	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	brokerURL := fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port)
	opts.AddBroker(brokerURL)

	// Client identification
	opts.SetClientID(cfg.Broker.ClientID)

	// Authentication (if credentials provided)
	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	// Clean session - start fresh on connect (no persistent session on broker)
	opts.SetCleanSession(true)

	// Auto-reconnect with exponential backoff
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(time.Duration(cfg.Reconnect.MaxDelay) * time.Second)

	// Connection timeout
	opts.SetConnectTimeout(defaultConnectTimeout)

	// Keepalive - broker sends PINGs to detect dead connections
	opts.SetKeepAlive(defaultKeepAlive)

	// Handlers run on their own goroutines. Command handlers publish a reply
	// and wait for its PUBACK, which paho cannot read while an ordered
	// handler holds the dispatch loop.
	opts.SetOrderMatters(false)

	// TLS configuration if enabled
	if cfg.Broker.TLS {
		tlsConfig := &tls.Config{
			MinVersion: tlsMinVersion,
		}
		opts.SetTLSConfig(tlsConfig)
	}

	return opts
}

// connectBackOff builds the retry policy for the initial connection.
//
// MaxAttempts counts total attempts; values below 1 mean a single attempt.
func connectBackOff(cfg config.MQTTReconnectConfig) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	if cfg.InitialDelay > 0 {
		bo.InitialInterval = time.Duration(cfg.InitialDelay) * time.Second
	}
	if cfg.MaxDelay > 0 {
		bo.MaxInterval = time.Duration(cfg.MaxDelay) * time.Second
	}
	bo.MaxElapsedTime = 0

	retries := 0
	if cfg.MaxAttempts > 1 {
		retries = cfg.MaxAttempts - 1
	}
	return backoff.WithMaxRetries(bo, uint64(retries))
}

// configureLWT sets up Last Will and Testament for offline detection.
//
// The LWT message is published by the broker if the node disconnects
// unexpectedly (crash, power loss, network failure). This allows other
// devices and dashboards to see the node go offline.
//
// Topic: {prefix}/{id}/status
// QoS: 1 (guaranteed delivery)
// Retained: true (new subscribers see last status)
func configureLWT(opts *pahomqtt.ClientOptions, topics Topics, deviceID int) {
	opts.SetWill(topics.Status(deviceID), string(buildStatusPayload(deviceID, StatusOffline, "")), 1, true)
}

// buildStatusPayload creates the JSON payload for status messages.
func buildStatusPayload(deviceID int, status, reason string) []byte {
	data, _ := json.Marshal(StatusMessage{ID: deviceID, Status: status, Reason: reason}) //nolint:errchkjson // Plain struct cannot fail
	return data
}
