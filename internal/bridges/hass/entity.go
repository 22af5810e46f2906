package hass

import (
	"strings"
	"time"
)

// Entity is a hub-managed addressable object identified by "domain.name".
//
// Entities are owned exclusively by the bridge's event cache. Other
// components read them through accessor methods and never mutate them; an
// incoming state_changed record replaces the whole entity, there is no
// partial attribute merge.
type Entity struct {
	EntityID    string     `json:"entity_id"`
	State       string     `json:"state"`
	Attributes  Attributes `json:"attributes"`
	LastChanged time.Time  `json:"last_changed"`
	LastUpdated time.Time  `json:"last_updated"`
}

// Domain returns the fixed category prefix of the entity identifier
// (e.g. "light" for "light.kitchen"). Returns "" for malformed ids.
func (e Entity) Domain() string {
	domain, _, ok := strings.Cut(e.EntityID, ".")
	if !ok {
		return ""
	}
	return domain
}

// Name returns the best human-readable name for the entity: the
// friendly_name attribute when present, otherwise the object part of the
// entity id with underscores replaced by spaces.
func (e Entity) Name() string {
	if name := e.Attributes.FriendlyName(); name != "" {
		return name
	}
	_, object, ok := strings.Cut(e.EntityID, ".")
	if !ok {
		return e.EntityID
	}
	return strings.ReplaceAll(object, "_", " ")
}

// Attributes is the open attribute mapping carried by every entity.
//
// The hub's attribute vocabulary is open-ended, so the representation stays
// an open map with typed accessors for the attributes the bridge interprets.
// Unmodeled attributes remain reachable by key for forward compatibility.
type Attributes map[string]any

// FriendlyName returns the friendly_name attribute, or "".
func (a Attributes) FriendlyName() string {
	s, _ := a.String("friendly_name")
	return s
}

// RawBrightness returns the hub-scale brightness (0–255) and whether the
// attribute is present and numeric.
func (a Attributes) RawBrightness() (float64, bool) {
	return a.Float("brightness")
}

// String returns a string attribute by key.
func (a Attributes) String(key string) (string, bool) {
	v, ok := a[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Float returns a numeric attribute by key. JSON numbers decode as float64;
// integer values stored programmatically are accepted too.
func (a Attributes) Float(key string) (float64, bool) {
	switch v := a[key].(type) {
	case float64:
		return v, true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	default:
		return 0, false
	}
}
