// Package mqtttest runs an in-process MQTT broker for tests.
package mqtttest

import (
	"io"
	"log/slog"
	"net"
	"strconv"
	"testing"
	"time"

	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"

	"github.com/nerrad567/gray-logic-node/internal/infrastructure/config"
)

// Broker is a running in-process broker bound to a loopback port.
type Broker struct {
	Server *mochi.Server
	Host   string
	Port   int
}

// Start launches a broker that accepts any client and stops it when the
// test finishes.
func Start(t *testing.T) *Broker {
	t.Helper()

	port := freePort(t)
	server := mochi.New(&mochi.Options{
		InlineClient: true,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		t.Fatalf("adding auth hook: %v", err)
	}

	tcp := listeners.NewTCP("t1", net.JoinHostPort("127.0.0.1", strconv.Itoa(port)), nil)
	if err := server.AddListener(tcp); err != nil {
		t.Fatalf("adding listener: %v", err)
	}

	go func() {
		_ = server.Serve() //nolint:errcheck // Closed in cleanup
	}()
	t.Cleanup(func() {
		server.Close() //nolint:errcheck // Test cleanup
	})

	waitListening(t, port)

	return &Broker{Server: server, Host: "127.0.0.1", Port: port}
}

// Config returns an MQTT config pointing at the broker with a single,
// fast connection attempt.
func (b *Broker) Config(clientID string) config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     b.Host,
			Port:     b.Port,
			ClientID: clientID,
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     2,
			MaxAttempts:  1,
		},
		Topics: config.MQTTTopicsConfig{
			Prefix: "esp32",
		},
	}
}

// freePort asks the kernel for an unused loopback port.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("finding free port: %v", err)
	}
	defer l.Close() //nolint:errcheck // Test cleanup
	return l.Addr().(*net.TCPAddr).Port
}

// waitListening blocks until the broker accepts TCP connections.
func waitListening(t *testing.T, port int) {
	t.Helper()
	addr := net.JoinHostPort("127.0.0.1", strconv.Itoa(port))
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close() //nolint:errcheck // Probe only
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("broker did not start listening on %s", addr)
}
