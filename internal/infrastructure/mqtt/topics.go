package mqtt

import "fmt"

// DefaultTopicPrefix is the first topic level shared by every node on the bus.
const DefaultTopicPrefix = "esp32"

// Topics provides builders for node MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
// Every node owns a receiver (inbound commands) and a sender (replies) topic
// under its numeric device id:
//
//	topics := mqtt.Topics{Prefix: "esp32"}
//	cmdTopic := topics.Receiver(5)
//	// Returns: "esp32/5/receiver"
//
// A zero-value Topics uses DefaultTopicPrefix.
type Topics struct {
	Prefix string
}

func (t Topics) prefix() string {
	if t.Prefix == "" {
		return DefaultTopicPrefix
	}
	return t.Prefix
}

// =============================================================================
// Device Topics
// =============================================================================

// Receiver returns the command topic a device subscribes to.
// Automation rules publish to the receiver of their output device.
//
// Example: esp32/5/receiver
func (t Topics) Receiver(deviceID int) string {
	return fmt.Sprintf("%s/%d/receiver", t.prefix(), deviceID)
}

// Sender returns the topic a device publishes command replies on.
//
// Example: esp32/5/sender
func (t Topics) Sender(deviceID int) string {
	return fmt.Sprintf("%s/%d/sender", t.prefix(), deviceID)
}

// Status returns the retained online/offline status topic of a device.
// It carries the Last Will.
//
// Example: esp32/5/status
func (t Topics) Status(deviceID int) string {
	return fmt.Sprintf("%s/%d/status", t.prefix(), deviceID)
}

// =============================================================================
// Shared Topics
// =============================================================================

// Online returns the heartbeat topic shared by all devices.
//
// Example: esp32/online
func (t Topics) Online() string {
	return fmt.Sprintf("%s/online", t.prefix())
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllSenders returns a pattern matching the replies of every device.
//
// Pattern: esp32/+/sender
func (t Topics) AllSenders() string {
	return fmt.Sprintf("%s/+/sender", t.prefix())
}

// AllStatuses returns a pattern matching the status topic of every device.
//
// Pattern: esp32/+/status
func (t Topics) AllStatuses() string {
	return fmt.Sprintf("%s/+/status", t.prefix())
}
