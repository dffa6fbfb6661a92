// Package mqtt provides MQTT client connectivity for Gray Logic Node.
//
// This package manages:
//   - Connection to the broker with backoff on startup and auto-reconnect after
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Device status on {prefix}/{id}/status with a Last Will for crashes
//   - Connection health monitoring
//
// # Architecture
//
// Every node is addressed by a numeric device id. Commands arrive on the
// node's receiver topic and replies leave on its sender topic; a shared
// online topic carries heartbeats from all nodes.
//
//	esp32/5/receiver → Node 5 → esp32/5/sender
//	                        ↘ esp32/online (heartbeat)
//	                        ↘ esp32/{n}/receiver (automation commands)
//
// # Security Considerations
//
//   - TLS should be enabled outside the lab (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - The command topic itself is not authenticated
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT, cfg.Device.ID, mqtt.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to this node's command topic
//	err = client.Subscribe(client.Topics().Receiver(cfg.Device.ID), 1,
//	    func(topic string, payload []byte) error {
//	        return dispatcher.Handle(topic, payload)
//	    })
//
//	// Send a command to another node
//	client.Publish(client.Topics().Receiver(6), []byte(`{"peripheral":"relay","method":"on"}`), 1, false)
package mqtt
