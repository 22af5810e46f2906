// Package api provides the local HTTP control surface for Hearth Core.
//
// It exposes the hub bridge to companion applications on the local
// network: device listing and lookup, normalized control commands, hub
// configuration, and health/status probes.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// All endpoints except /api/v1/health require the static API key from
// configuration, presented as "X-API-Key" or "Authorization: Bearer".
//
// Thread Safety: all methods are safe for concurrent use from multiple
// goroutines.
package api
