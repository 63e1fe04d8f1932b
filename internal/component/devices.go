package component

import (
	"fmt"
	"slices"
)

// Device classes known to the core.
const (
	ClassEssAsymmetric  = "Ess.Asymmetric"
	ClassMeterSymmetric = "Meter.Symmetric"
	ClassSystem         = "System"
	ClassMeta           = "Meta"
)

// Well-known component ids.
const (
	SystemID = "system0"
	MetaID   = "_meta"
)

// DeviceClass describes a device type: its capabilities and channels.
type DeviceClass struct {
	Class        string
	Capabilities []string
	Channels     []ChannelSpec
}

func powerChannels(prefix string) []ChannelSpec {
	return []ChannelSpec{
		{ID: prefix, Type: TypeNumber, Unit: "W"},
		{ID: prefix + "L1", Type: TypeNumber, Unit: "W"},
		{ID: prefix + "L2", Type: TypeNumber, Unit: "W"},
		{ID: prefix + "L3", Type: TypeNumber, Unit: "W"},
	}
}

var deviceClasses = map[string]DeviceClass{
	ClassEssAsymmetric: {
		Class:        ClassEssAsymmetric,
		Capabilities: []string{"SymmetricEss", "AsymmetricEss", "ManagedSymmetricEss", "ManagedAsymmetricEss"},
		Channels: slices.Concat(
			[]ChannelSpec{
				{ID: "Soc", Type: TypeNumber, Unit: "%"},
				{ID: "GridMode", Type: TypeAny},
				{ID: "AllowedCharge", Type: TypeNumber, Unit: "W"},
				{ID: "AllowedDischarge", Type: TypeNumber, Unit: "W"},
				{ID: "MaxApparentPower", Type: TypeNumber, Unit: "VA"},
			},
			powerChannels("ActivePower"),
			powerChannels("ReactivePower"),
			[]ChannelSpec{
				{ID: "capacity", Type: TypeInteger, Unit: "Wh", Config: true},
				{ID: "maxApparentPower", Type: TypeInteger, Unit: "VA", Config: true},
				{ID: "enabled", Type: TypeBool, Config: true, Default: true},
			},
		),
	},
	ClassMeterSymmetric: {
		Class:        ClassMeterSymmetric,
		Capabilities: []string{"Meter", "SymmetricMeter"},
		Channels: []ChannelSpec{
			{ID: "ActivePower", Type: TypeNumber, Unit: "W"},
			{ID: "ReactivePower", Type: TypeNumber, Unit: "var"},
			{ID: "Frequency", Type: TypeNumber, Unit: "mHz"},
			{ID: "Voltage", Type: TypeNumber, Unit: "mV"},
			{ID: "type", Type: TypeString, Config: true, Default: "grid"},
			{ID: "enabled", Type: TypeBool, Config: true, Default: true},
		},
	},
	ClassSystem: {
		Class:        ClassSystem,
		Capabilities: []string{"System"},
		Channels: []ChannelSpec{
			{ID: "PrimaryIpAddress", Type: TypeString},
			{ID: "timezone", Type: TypeString, Config: true, Default: "UTC"},
		},
	},
	ClassMeta: {
		Class:        ClassMeta,
		Capabilities: []string{"Meta"},
		Channels: []ChannelSpec{
			{ID: "Version", Type: TypeString},
		},
	},
}

// LookupDeviceClass returns the declaration of a device class.
func LookupDeviceClass(class string) (DeviceClass, bool) {
	dc, ok := deviceClasses[class]
	return dc, ok
}

// NewDevice constructs a device component of the given class.
func NewDevice(id, class string, config map[string]any) (Component, error) {
	dc, ok := deviceClasses[class]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClass, class)
	}
	return NewBase(id, dc.Class, dc.Capabilities, dc.Channels, config)
}
