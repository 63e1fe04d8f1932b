package component

import (
	"fmt"
	"strings"
)

// ReservedPrefix marks ids managed by the core itself.
const ReservedPrefix = "_"

// IsReservedID reports whether id is reserved for internal components.
func IsReservedID(id string) bool {
	return strings.HasPrefix(id, ReservedPrefix)
}

// ChannelAddress identifies one channel as "componentId/channelId".
type ChannelAddress struct {
	Component string
	Channel   string
}

// ParseChannelAddress parses the canonical "componentId/channelId" form.
func ParseChannelAddress(s string) (ChannelAddress, error) {
	comp, ch, ok := strings.Cut(s, "/")
	if !ok || comp == "" || ch == "" || strings.Contains(ch, "/") {
		return ChannelAddress{}, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return ChannelAddress{Component: comp, Channel: ch}, nil
}

// String returns the canonical form.
func (a ChannelAddress) String() string {
	return a.Component + "/" + a.Channel
}
