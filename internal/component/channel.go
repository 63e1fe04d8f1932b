package component

import "sync"

// ChannelSpec declares a channel of a component class.
type ChannelSpec struct {
	ID   string    `json:"id"`
	Type ValueType `json:"type"`
	Unit string    `json:"unit,omitempty"`

	// Config marks a writable configuration channel.
	Config bool `json:"config,omitempty"`

	// Default is the initial value of a configuration channel. A config
	// channel without a default is required at construction.
	Default any `json:"default,omitempty"`
}

// Channel is a live value cell. Read channels are fed by device drivers;
// configuration channels are written through Update.
type Channel struct {
	address ChannelAddress
	spec    ChannelSpec

	mu    sync.RWMutex
	value any
}

func newChannel(componentID string, spec ChannelSpec) *Channel {
	if spec.Type == "" {
		spec.Type = TypeAny
	}
	return &Channel{
		address: ChannelAddress{Component: componentID, Channel: spec.ID},
		spec:    spec,
		value:   spec.Default,
	}
}

// ID returns the channel id within its component.
func (c *Channel) ID() string { return c.spec.ID }

// Address returns the full channel address.
func (c *Channel) Address() ChannelAddress { return c.address }

// Spec returns the channel declaration.
func (c *Channel) Spec() ChannelSpec { return c.spec }

// IsConfig reports whether the channel accepts writes.
func (c *Channel) IsConfig() bool { return c.spec.Config }

// Value returns the current value, nil if none.
func (c *Channel) Value() any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.value
}

// Update writes a configuration channel. The value is coerced to the
// channel's type and the stored value is returned.
func (c *Channel) Update(v any) (any, error) {
	if !c.spec.Config {
		return nil, ErrNotConfigChannel
	}
	n, err := coerce(c.spec.Type, v)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.value = n
	c.mu.Unlock()
	return n, nil
}

// setValue stores a measured value from a device feed.
func (c *Channel) setValue(v any) error {
	n, err := coerce(c.spec.Type, v)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.value = n
	c.mu.Unlock()
	return nil
}
