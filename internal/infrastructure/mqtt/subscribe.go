package mqtt

import (
	"fmt"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

// Subscribe registers handler for topic (wildcards allowed). The
// subscription is kept for the life of the client and restored after
// every reconnect. Subscribing to the same topic again replaces the
// handler.
func (c *Client) Subscribe(topic string, qos byte, handler MessageHandler) error {
	switch {
	case topic == "":
		return ErrInvalidTopic
	case qos > maxQoS:
		return ErrInvalidQoS
	case handler == nil:
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	case !c.IsConnected():
		return ErrNotConnected
	}

	logger := c.opts.Logger
	wrapped := func(_ pahomqtt.Client, msg pahomqtt.Message) {
		deliver(logger, handler, msg.Topic(), msg.Payload())
	}

	if err := wait(c.client.Subscribe(topic, qos, wrapped), defaultPublishTimeout, ErrSubscribeFailed); err != nil {
		return err
	}

	c.mu.Lock()
	c.subscriptions[topic] = subscription{qos: qos, handler: wrapped}
	c.mu.Unlock()
	return nil
}
