package component

import "errors"

// Domain errors for component operations.
var (
	// ErrComponentNotFound is returned when no component has the requested ID.
	ErrComponentNotFound = errors.New("component not found")

	// ErrChannelNotFound is returned when a component has no such channel.
	ErrChannelNotFound = errors.New("channel not found")

	// ErrInvalidAddress is returned for strings that are not "component/channel".
	ErrInvalidAddress = errors.New("invalid channel address")

	// ErrNotConfigChannel is returned when writing a read-only channel.
	ErrNotConfigChannel = errors.New("channel is not a configuration channel")

	// ErrInvalidValue is returned when a value does not fit a channel's type.
	ErrInvalidValue = errors.New("invalid channel value")

	// ErrReservedID is returned for ids beginning with the reserved "_" prefix.
	ErrReservedID = errors.New("ids starting with underscore are reserved for internal use")

	// ErrDuplicateID is returned when a component id is already registered.
	ErrDuplicateID = errors.New("component id already exists")

	// ErrUnknownClass is returned when no factory is registered for a class.
	ErrUnknownClass = errors.New("unknown component class")

	// ErrMissingConfig is returned when a required configuration value is absent.
	ErrMissingConfig = errors.New("missing required configuration")
)
