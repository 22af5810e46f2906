package mqtt

import "fmt"

// Topic prefixes for the Hearth MQTT surface.
//
// Device topics use the flat scheme: hearth/device/{device_id}/{kind}.
const (
	// TopicPrefix is the base for all Hearth topics.
	TopicPrefix = "hearth"

	// TopicPrefixDevice is the base for device state and command topics.
	TopicPrefixDevice = "hearth/device"

	// TopicPrefixHub is the base for hub connection topics.
	TopicPrefixHub = "hearth/hub"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "hearth/system"
)

// Topics provides builders for Hearth MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.DeviceState("light.kitchen")
//	// Returns: "hearth/device/light.kitchen/state"
type Topics struct{}

// DeviceState returns the topic carrying a device's normalized state.
// Retained, so new subscribers immediately see the current state.
//
// Example: hearth/device/light.kitchen/state
func (Topics) DeviceState(deviceID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixDevice, deviceID)
}

// DeviceCommand returns the topic on which external clients issue commands
// for a single device. Payload: {"action": "turn_on"|"turn_off"|"toggle",
// "brightness": <pct>?}.
//
// Example: hearth/device/light.kitchen/command
func (Topics) DeviceCommand(deviceID string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixDevice, deviceID)
}

// HubStatus returns the topic carrying the hub connection status. Retained.
//
// Example: hearth/hub/status
func (Topics) HubStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixHub)
}

// SystemStatus returns the service online/offline status topic. Retained,
// and also used for the Last Will message.
//
// Example: hearth/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// Event returns the topic for service-level events.
//
// Example: hearth/event/hub_reconnected
func (Topics) Event(eventType string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefix, eventType)
}

// AllDeviceStates returns a pattern matching every device state topic.
//
// Pattern: hearth/device/+/state
func (Topics) AllDeviceStates() string {
	return fmt.Sprintf("%s/+/state", TopicPrefixDevice)
}

// AllDeviceCommands returns a pattern matching every device command topic.
//
// Pattern: hearth/device/+/command
func (Topics) AllDeviceCommands() string {
	return fmt.Sprintf("%s/+/command", TopicPrefixDevice)
}

// AllTopics returns a pattern matching all Hearth topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: hearth/#
func (Topics) AllTopics() string {
	return "hearth/#"
}
