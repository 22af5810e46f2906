// Package hass implements the Home Assistant bridge for Hearth Core.
//
// This package connects the voice assistant to a Home Assistant hub. It
// mirrors the hub's entities into a local cache, exposes them as normalized
// devices, and translates spoken-intent commands into hub service calls.
//
// # Architecture
//
// The bridge combines a stateless REST transport with one persistent
// WebSocket connection:
//
//	┌─────────────────┐   REST (/api/...)    ┌─────────────────┐
//	│   Hearth Core   │─────────────────────►│                 │
//	│   (this pkg)    │                      │  Home Assistant │
//	│                 │◄────────────────────►│       hub       │
//	└─────────────────┘  WebSocket (events)  └─────────────────┘
//
// # Key Responsibilities
//
//   - Validate hub reachability and load the initial entity snapshot
//   - Authenticate the WebSocket connection with the long-lived token
//   - Subscribe to state_changed events and keep the entity cache current
//   - Correlate WebSocket requests with their asynchronous results
//   - Reconnect with bounded exponential backoff after connection loss
//   - Project raw entities into normalized devices (type, active, brightness)
//   - Resolve devices by id or fuzzy name and issue control service calls
//
// # Connection Lifecycle
//
// ConnectionState moves through disconnected → connecting → authenticating →
// connected. A lost connection re-enters connecting via the reconnection
// supervisor; a rejected token goes straight to disconnected and stays there
// until the bridge is reconfigured.
//
// # Thread Safety
//
// All exported methods on Bridge are safe for concurrent use. Entities are
// owned by the internal cache; readers always observe a complete record.
package hass
