package component

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/nerrad567/edgelink-core/internal/infrastructure/mqtt"
)

// Subscriber registers MQTT handlers. *mqtt.Client satisfies it.
type Subscriber interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
}

// MQTTFeed copies channel values published by device drivers into the
// registry. Drivers publish to edgelink/state/{component}/{channel} with
// either a bare JSON scalar or {"value": scalar} as payload.
type MQTTFeed struct {
	registry *Registry
	logger   Logger
}

// NewMQTTFeed creates a feed writing into registry.
func NewMQTTFeed(registry *Registry) *MQTTFeed {
	return &MQTTFeed{registry: registry, logger: noopLogger{}}
}

// SetLogger sets the logger for the feed.
func (f *MQTTFeed) SetLogger(logger Logger) {
	f.logger = logger
}

// Start subscribes to every channel state topic.
func (f *MQTTFeed) Start(sub Subscriber, qos byte) error {
	if err := sub.Subscribe(mqtt.Topics{}.AllChannelStates(), qos, f.HandleMessage); err != nil {
		return fmt.Errorf("subscribing to channel states: %w", err)
	}
	return nil
}

// HandleMessage applies one state message. Unknown channels are ignored
// with a debug log; malformed payloads are returned as errors.
func (f *MQTTFeed) HandleMessage(topic string, payload []byte) error {
	compID, chID, ok := mqtt.Topics{}.ParseChannelState(topic)
	if !ok {
		return fmt.Errorf("%w: topic %q", ErrInvalidAddress, topic)
	}

	value, err := decodeStatePayload(payload)
	if err != nil {
		return fmt.Errorf("decoding %s: %w", topic, err)
	}

	ch, err := f.registry.Resolve(ChannelAddress{Component: compID, Channel: chID})
	if err != nil {
		f.logger.Debug("state for unknown channel", "component", compID, "channel", chID)
		return nil
	}
	if ch.IsConfig() {
		f.logger.Warn("ignoring driver write to configuration channel", "address", ch.Address().String())
		return nil
	}
	return ch.setValue(value)
}

func decodeStatePayload(payload []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if obj, ok := raw.(map[string]any); ok {
		v, has := obj["value"]
		if !has {
			return nil, fmt.Errorf("%w: object without value", ErrInvalidValue)
		}
		raw = v
	}
	return NormalizeValue(raw)
}
