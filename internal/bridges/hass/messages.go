package hass

import "encoding/json"

// WebSocket message types exchanged with the hub.
const (
	msgTypeAuthRequired = "auth_required"
	msgTypeAuth         = "auth"
	msgTypeAuthOK       = "auth_ok"
	msgTypeAuthInvalid  = "auth_invalid"
	msgTypeResult       = "result"
	msgTypeEvent        = "event"
	msgTypeSubscribe    = "subscribe_events"
)

// eventTypeStateChanged is the single event class the bridge subscribes to.
const eventTypeStateChanged = "state_changed"

// serverMessage is the envelope for every message received on the WebSocket
// connection. Only the fields relevant to the message's type are populated.
type serverMessage struct {
	ID      int64           `json:"id,omitempty"`
	Type    string          `json:"type"`
	Success *bool           `json:"success,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *resultError    `json:"error,omitempty"`
	Event   *eventEnvelope  `json:"event,omitempty"`
	// Message carries the hub's reason on auth_invalid.
	Message string `json:"message,omitempty"`
}

// resultError is the error payload of a failed result message.
type resultError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// eventEnvelope wraps an event delivered over the subscription.
type eventEnvelope struct {
	EventType string           `json:"event_type"`
	Data      stateChangedData `json:"data"`
}

// stateChangedData is the payload of a state_changed event. OldState is
// delivered by the hub but unused: the cache replaces, it never merges.
type stateChangedData struct {
	EntityID string  `json:"entity_id"`
	NewState *Entity `json:"new_state"`
	OldState *Entity `json:"old_state"`
}

// authMessage is the client's response to the auth_required challenge.
type authMessage struct {
	Type        string `json:"type"`
	AccessToken string `json:"access_token"`
}

// subscribeMessage requests delivery of an event class.
type subscribeMessage struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	EventType string `json:"event_type"`
}
