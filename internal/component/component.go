package component

import (
	"fmt"
	"slices"
)

// Component is a live device, controller or system thing addressable by id.
type Component interface {
	ID() string
	Class() string

	// Channels returns every channel in declaration order.
	Channels() []*Channel
	Channel(id string) (*Channel, bool)

	// Capabilities lists the statically declared capability tags of the
	// component's class, e.g. "SymmetricEss".
	Capabilities() []string

	// Config returns the values of all configuration channels.
	Config() map[string]any
}

// Base implements Component for a fixed channel set.
type Base struct {
	id           string
	class        string
	capabilities []string
	channels     []*Channel
	index        map[string]*Channel
}

// NewBase creates a component with channels built from specs and applies
// config to its configuration channels. Unknown config keys are rejected.
func NewBase(id, class string, capabilities []string, specs []ChannelSpec, config map[string]any) (*Base, error) {
	b := &Base{
		id:           id,
		class:        class,
		capabilities: slices.Clone(capabilities),
		channels:     make([]*Channel, 0, len(specs)),
		index:        make(map[string]*Channel, len(specs)),
	}
	for _, spec := range specs {
		ch := newChannel(id, spec)
		b.channels = append(b.channels, ch)
		b.index[spec.ID] = ch
	}

	for key, v := range config {
		ch, ok := b.index[key]
		if !ok {
			return nil, fmt.Errorf("%s: %w: %s", id, ErrChannelNotFound, key)
		}
		if _, err := ch.Update(v); err != nil {
			return nil, fmt.Errorf("%s/%s: %w", id, key, err)
		}
	}
	for _, ch := range b.channels {
		if ch.IsConfig() && ch.Value() == nil && ch.spec.Default == nil {
			if _, set := config[ch.ID()]; !set {
				return nil, fmt.Errorf("%s: %w: %s", id, ErrMissingConfig, ch.ID())
			}
		}
	}
	return b, nil
}

// ID returns the component id.
func (b *Base) ID() string { return b.id }

// Class returns the component class name.
func (b *Base) Class() string { return b.class }

// Channels returns every channel in declaration order.
func (b *Base) Channels() []*Channel { return slices.Clone(b.channels) }

// Channel looks up a channel by id.
func (b *Base) Channel(id string) (*Channel, bool) {
	ch, ok := b.index[id]
	return ch, ok
}

// Capabilities returns the class capability tags.
func (b *Base) Capabilities() []string { return slices.Clone(b.capabilities) }

// Config returns the values of all configuration channels.
func (b *Base) Config() map[string]any {
	cfg := make(map[string]any)
	for _, ch := range b.channels {
		if ch.IsConfig() {
			cfg[ch.ID()] = ch.Value()
		}
	}
	return cfg
}

// Describe serialises a component as {id, class, <config>...}.
func Describe(c Component) map[string]any {
	out := c.Config()
	out["id"] = c.ID()
	out["class"] = c.Class()
	return out
}
