package hass

import "errors"

// Domain errors for the Home Assistant bridge package.
var (
	// ErrNotConfigured is returned when an operation requires a configured
	// bridge but Configure has not succeeded yet.
	ErrNotConfigured = errors.New("hass: bridge not configured")

	// ErrInvalidConfig is returned when the bridge configuration is invalid.
	ErrInvalidConfig = errors.New("hass: invalid configuration")

	// ErrHubUnreachable is returned when the hub does not answer the REST
	// liveness probe during configuration.
	ErrHubUnreachable = errors.New("hass: hub unreachable")

	// ErrAuthRejected is returned when the hub rejects the access token
	// during the WebSocket handshake. This is terminal: the bridge will not
	// reconnect until it is reconfigured with a new token.
	ErrAuthRejected = errors.New("hass: authentication rejected by hub")

	// ErrHandshakeTimeout is returned when the handshake does not reach the
	// authenticated state within the configured deadline.
	ErrHandshakeTimeout = errors.New("hass: authentication handshake timed out")

	// ErrConnectionLost is returned for requests that were still pending when
	// the WebSocket connection dropped.
	ErrConnectionLost = errors.New("hass: connection lost")

	// ErrNotConnected is returned when an operation requires the WebSocket
	// connection but it is not established.
	ErrNotConnected = errors.New("hass: not connected to hub")

	// ErrCommandFailed is returned when the hub answers a WebSocket request
	// with success=false.
	ErrCommandFailed = errors.New("hass: command rejected by hub")

	// ErrServiceCall is returned when a REST service invocation fails.
	ErrServiceCall = errors.New("hass: service call failed")
)
