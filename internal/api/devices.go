package api

import (
	"net/http"
	"strings"

	"github.com/hearthvoice/hearth-core/internal/bridges/hass"
)

// handleListDevices returns all devices, with optional query filters.
//
// Query parameters:
//   - type: filter by device type (light, switch, climate, ...)
//   - area: filter by area name (case-insensitive substring)
//
// When both are given, type is applied first and area filters the result.
func (s *Server) handleListDevices(w http.ResponseWriter, r *http.Request) {
	var devices []hass.Device

	switch {
	case r.URL.Query().Get("type") != "":
		devices = s.bridge.GetDevicesByType(hass.DeviceType(r.URL.Query().Get("type")))
		if area := r.URL.Query().Get("area"); area != "" {
			devices = filterByArea(devices, area)
		}
	case r.URL.Query().Get("area") != "":
		devices = s.bridge.GetDevicesByArea(r.URL.Query().Get("area"))
	default:
		devices = s.bridge.GetAllDevices()
	}

	if devices == nil {
		devices = []hass.Device{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": devices, "count": len(devices)})
}

// filterByArea keeps the devices whose area name contains the query,
// case-insensitively.
func filterByArea(devices []hass.Device, area string) []hass.Device {
	q := strings.ToLower(area)
	var out []hass.Device
	for _, dev := range devices {
		if dev.Area != "" && strings.Contains(strings.ToLower(dev.Area), q) {
			out = append(out, dev)
		}
	}
	return out
}

// handleFindDevice resolves a device by exact entity id or fuzzy name match.
//
// Query parameters:
//   - q: the entity id or partial name (required)
func (s *Server) handleFindDevice(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeBadRequest(w, "query parameter 'q' is required")
		return
	}

	dev, ok := s.bridge.FindDevice(query)
	if !ok {
		writeNotFound(w, "no device matches "+query)
		return
	}

	writeJSON(w, http.StatusOK, dev)
}
