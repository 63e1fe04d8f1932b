package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefix roots every EdgeLink topic.
const TopicPrefix = "edgelink"

// Topics builds EdgeLink MQTT topics:
//
//	edgelink/state/{component}/{channel}     channel values from device drivers
//	edgelink/command/{component}/{command}   commands to device drivers
//	edgelink/edge/{edgeID}/status            edge metadata (retained)
//	edgelink/system/status                   core online/offline (retained, LWT)
type Topics struct{}

// ChannelState returns the state topic for one channel.
func (Topics) ChannelState(componentID, channelID string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, componentID, channelID)
}

// AllChannelStates matches every channel state topic.
func (Topics) AllChannelStates() string {
	return TopicPrefix + "/state/+/+"
}

// ComponentCommand returns the command topic for a component.
func (Topics) ComponentCommand(componentID, command string) string {
	return fmt.Sprintf("%s/command/%s/%s", TopicPrefix, componentID, command)
}

// EdgeStatus returns the retained status topic for an edge.
func (Topics) EdgeStatus(edgeID string) string {
	return fmt.Sprintf("%s/edge/%s/status", TopicPrefix, edgeID)
}

// SystemStatus is where the core announces itself.
func (Topics) SystemStatus() string {
	return TopicPrefix + "/system/status"
}

// ParseChannelState splits a channel state topic into its component and
// channel ids.
func (Topics) ParseChannelState(topic string) (componentID, channelID string, ok bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[0] != TopicPrefix || parts[1] != "state" || parts[2] == "" || parts[3] == "" {
		return "", "", false
	}
	return parts[2], parts[3], true
}
