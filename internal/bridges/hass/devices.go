package hass

import (
	"math"
	"strings"
)

// DeviceType is the bridge's coarse device classification, derived from the
// entity's domain.
type DeviceType string

// DeviceType values.
const (
	DeviceLight        DeviceType = "light"
	DeviceSwitch       DeviceType = "switch"
	DeviceClimate      DeviceType = "climate"
	DeviceMedia        DeviceType = "media"
	DeviceCover        DeviceType = "cover"
	DeviceLock         DeviceType = "lock"
	DeviceSensor       DeviceType = "sensor"
	DeviceBinarySensor DeviceType = "binary_sensor"
	DeviceCamera       DeviceType = "camera"
	DeviceVacuum       DeviceType = "vacuum"
	DeviceFan          DeviceType = "fan"
	DeviceOther        DeviceType = "other"
)

// Device is the simplified, consumer-facing view of a cached entity.
//
// Device values are derived snapshots: computing one never mutates the
// underlying entity, and two calls over the same entity yield equal devices.
type Device struct {
	EntityID   string     `json:"entity_id"`
	Name       string     `json:"name"`
	Type       DeviceType `json:"type"`
	State      string     `json:"state"`
	Active     bool       `json:"active"`
	Area       string     `json:"area,omitempty"`
	Brightness *int       `json:"brightness,omitempty"`
}

// domainTypes maps entity domains to device types. Domains absent from the
// table and from excludedDomains classify as DeviceOther.
var domainTypes = map[string]DeviceType{
	"light":         DeviceLight,
	"switch":        DeviceSwitch,
	"climate":       DeviceClimate,
	"media_player":  DeviceMedia,
	"cover":         DeviceCover,
	"lock":          DeviceLock,
	"sensor":        DeviceSensor,
	"binary_sensor": DeviceBinarySensor,
	"camera":        DeviceCamera,
	"vacuum":        DeviceVacuum,
	"fan":           DeviceFan,
}

// excludedDomains lists hub-internal domains that never surface as devices.
var excludedDomains = map[string]struct{}{
	"automation":     {},
	"scene":          {},
	"script":         {},
	"zone":           {},
	"device_tracker": {},
	"person":         {},
	"group":          {},
	"sun":            {},
}

// activeStates are the state strings, matched case-insensitively, that count
// as "active" regardless of device type.
var activeStates = map[string]struct{}{
	"on":       {},
	"playing":  {},
	"open":     {},
	"unlocked": {},
	"home":     {},
}

// ToDevice derives the consumer-facing device snapshot from an entity.
// Returns nil for entities in excluded domains.
//
// Brightness is translated from the hub's 0–255 scale to percent, rounding
// to the nearest integer. Only lights carry brightness, and only when the
// hub reports the attribute.
func ToDevice(e Entity, area string) *Device {
	domain := e.Domain()
	if _, excluded := excludedDomains[domain]; excluded {
		return nil
	}

	typ, ok := domainTypes[domain]
	if !ok {
		typ = DeviceOther
	}

	_, active := activeStates[strings.ToLower(e.State)]

	dev := &Device{
		EntityID: e.EntityID,
		Name:     e.Name(),
		Type:     typ,
		State:    e.State,
		Active:   active,
		Area:     area,
	}

	if typ == DeviceLight {
		if raw, ok := e.Attributes.RawBrightness(); ok {
			pct := int(math.Round(raw / 2.55))
			dev.Brightness = &pct
		}
	}
	return dev
}
