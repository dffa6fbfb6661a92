package mqtt

import (
	"fmt"
)

// Subscribe registers handler for a topic pattern.
//
// Patterns may use + and # wildcards, e.g. Topics().AllSenders(). The
// subscription is remembered and restored after every reconnect. Handlers
// run on their own goroutines and may publish; a handler error or panic is
// logged and does not affect other messages.
//
// Returns:
//   - error: ErrInvalidTopic, ErrInvalidQoS, ErrNotConnected, or a wrapped
//     ErrSubscribeFailed (the subscription is then forgotten)
//
// Example:
//
//	err := client.Subscribe(client.Topics().Receiver(5), 1, dispatcher.Handle)
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if err := validate(topic, qos); err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.track(subscription{topic: topic, qos: qos, handler: handler})
	if err := await(c.client.Subscribe(topic, qos, c.wrapHandler(handler)), ErrSubscribeFailed); err != nil {
		c.forget(topic)
		return err
	}
	return nil
}

// Unsubscribe stops delivery for a topic pattern passed to Subscribe.
// Messages already in flight may still reach the handler.
//
// Returns:
//   - error: ErrInvalidTopic, ErrNotConnected, or a wrapped ErrUnsubscribeFailed
func (c *Client) Unsubscribe(topic string) error {
	if topic == "" {
		return ErrInvalidTopic
	}
	if !c.IsConnected() {
		return ErrNotConnected
	}

	c.forget(topic)
	return await(c.client.Unsubscribe(topic), ErrUnsubscribeFailed)
}

func (c *Client) track(sub subscription) {
	c.subMu.Lock()
	c.subscriptions[sub.topic] = sub
	c.subMu.Unlock()
}

func (c *Client) forget(topic string) {
	c.subMu.Lock()
	delete(c.subscriptions, topic)
	c.subMu.Unlock()
}
