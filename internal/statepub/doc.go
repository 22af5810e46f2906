// Package statepub mirrors device state onto the MQTT bus.
//
// Every state change delivered by the hub bridge is republished as a
// retained message on hearth/device/{id}/state, so panels and voice
// satellites can track the home without polling the HTTP API. The hub
// connection status is mirrored to hearth/hub/status the same way.
//
// Command flow runs in the opposite direction: messages published to
// hearth/device/{id}/command are translated into bridge commands, giving
// MQTT-only clients full device control.
//
// # Message Formats
//
// State (retained):
//
//	{"entity_id":"light.kitchen","name":"Kitchen Light","type":"light",
//	 "state":"on","active":true,"brightness":80}
//
// Command:
//
//	{"action":"turn_on","brightness":40}
//
// # Thread Safety
//
// The publisher is safe for concurrent use. State fan-in arrives on the
// bridge's event goroutine; publishing is non-blocking from its
// perspective apart from broker acknowledgement waits.
package statepub
