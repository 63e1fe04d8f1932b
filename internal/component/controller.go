package component

import (
	"fmt"
	"slices"
)

// Controller is a component that schedulers execute in priority order.
type Controller interface {
	Component
	Priority() int
}

type controller struct {
	*Base
}

// Priority returns the configured priority; higher runs first.
func (c controller) Priority() int {
	ch, ok := c.Channel("priority")
	if !ok {
		return 0
	}
	v, _ := ch.Value().(float64) //nolint:errcheck // type assertion, zero on mismatch
	return int(v)
}

// ControllerDescription documents a controller class that can be created
// at runtime.
type ControllerDescription struct {
	Class    string        `json:"class" yaml:"class"`
	Title    string        `json:"title" yaml:"title"`
	Text     string        `json:"text" yaml:"text"`
	Channels []ChannelSpec `json:"channels" yaml:"channels"`
}

// ControllerFactory constructs controllers by class.
type ControllerFactory interface {
	NewController(id, class string, config map[string]any) (Controller, error)
	Available() []ControllerDescription
}

var priorityChannel = ChannelSpec{ID: "priority", Type: TypeInteger, Config: true, Default: float64(50)}

// builtinControllers are the classes registered by DefaultControllerFactory.
var builtinControllers = []ControllerDescription{
	{
		Class: "Controller.Debug.Log",
		Title: "Debug log",
		Text:  "Periodically logs the state of all components.",
		Channels: []ChannelSpec{
			priorityChannel,
		},
	},
	{
		Class: "Controller.Ess.Balancing",
		Title: "Self-consumption optimisation",
		Text:  "Charges or discharges the storage to keep the grid meter at zero.",
		Channels: []ChannelSpec{
			{ID: "ess", Type: TypeString, Config: true},
			{ID: "meter", Type: TypeString, Config: true},
			priorityChannel,
		},
	},
	{
		Class: "Controller.Ess.LimitTotalDischarge",
		Title: "Limit total discharge",
		Text:  "Stops discharging below a minimum state of charge.",
		Channels: []ChannelSpec{
			{ID: "ess", Type: TypeString, Config: true},
			{ID: "minSoc", Type: TypeInteger, Unit: "%", Config: true, Default: float64(10)},
			priorityChannel,
		},
	},
	{
		Class: "Controller.ChannelThreshold",
		Title: "Channel threshold",
		Text:  "Switches an output channel while an input channel is within a range.",
		Channels: []ChannelSpec{
			{ID: "inputChannelAddress", Type: TypeString, Config: true},
			{ID: "outputChannelAddress", Type: TypeString, Config: true},
			{ID: "lowThreshold", Type: TypeNumber, Config: true, Default: float64(0)},
			{ID: "highThreshold", Type: TypeNumber, Config: true, Default: float64(100)},
			priorityChannel,
		},
	},
}

// StaticFactory is a ControllerFactory over a fixed set of classes.
type StaticFactory struct {
	classes map[string]ControllerDescription
	order   []string
}

// NewStaticFactory creates a factory for the given controller classes.
func NewStaticFactory(descriptions ...ControllerDescription) *StaticFactory {
	f := &StaticFactory{classes: make(map[string]ControllerDescription, len(descriptions))}
	for _, d := range descriptions {
		if _, dup := f.classes[d.Class]; !dup {
			f.order = append(f.order, d.Class)
		}
		f.classes[d.Class] = d
	}
	return f
}

// DefaultControllerFactory returns a factory for the built-in controllers.
func DefaultControllerFactory() *StaticFactory {
	return NewStaticFactory(builtinControllers...)
}

// NewController constructs a controller of class with config applied.
func (f *StaticFactory) NewController(id, class string, config map[string]any) (Controller, error) {
	d, ok := f.classes[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}
	base, err := NewBase(id, d.Class, []string{"Controller"}, d.Channels, config)
	if err != nil {
		return nil, err
	}
	return controller{Base: base}, nil
}

// Available returns the descriptions in registration order.
func (f *StaticFactory) Available() []ControllerDescription {
	out := make([]ControllerDescription, 0, len(f.order))
	for _, class := range f.order {
		d := f.classes[class]
		d.Channels = slices.Clone(d.Channels)
		out = append(out, d)
	}
	return out
}
