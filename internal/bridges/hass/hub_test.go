package hass

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gorilla/websocket"
)

// serviceCall records one service invocation the fake hub received.
type serviceCall struct {
	Domain  string
	Service string
	Payload map[string]any
}

// fakeHub emulates the hub's REST and WebSocket surface for tests.
type fakeHub struct {
	t      *testing.T
	server *httptest.Server

	mu       sync.Mutex
	entities []Entity
	registry []registryEntry
	areas    []areaEntry
	calls    []serviceCall

	rejectAuth bool
	silentWS   bool
	wsIDs      []int64
	conns      []*websocket.Conn
}

func newFakeHub(t *testing.T) *fakeHub {
	h := &fakeHub{t: t}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/", h.handleREST)
	mux.HandleFunc("/api/websocket", h.handleWebsocket)
	h.server = httptest.NewServer(mux)
	t.Cleanup(h.server.Close)
	return h
}

func (h *fakeHub) url() string { return h.server.URL }

func (h *fakeHub) config() Config {
	return Config{URL: h.server.URL, Token: "test-token", AutoDiscovery: true}
}

func (h *fakeHub) setEntities(entities ...Entity) {
	h.mu.Lock()
	h.entities = entities
	h.mu.Unlock()
}

func (h *fakeHub) setRegistry(entries []registryEntry, areas []areaEntry) {
	h.mu.Lock()
	h.registry = entries
	h.areas = areas
	h.mu.Unlock()
}

func (h *fakeHub) serviceCalls() []serviceCall {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]serviceCall, len(h.calls))
	copy(out, h.calls)
	return out
}

func (h *fakeHub) handleREST(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer test-token" {
		http.Error(w, `{"message":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case r.URL.Path == "/api/" && r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(map[string]string{"message": "API running."})
	case r.URL.Path == "/api/states" && r.Method == http.MethodGet:
		json.NewEncoder(w).Encode(h.entities)
	case r.URL.Path == "/api/config/entity_registry/list":
		json.NewEncoder(w).Encode(h.registry)
	case r.URL.Path == "/api/config/area_registry/list":
		json.NewEncoder(w).Encode(h.areas)
	case strings.HasPrefix(r.URL.Path, "/api/services/") && r.Method == http.MethodPost:
		parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/services/"), "/")
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		h.calls = append(h.calls, serviceCall{Domain: parts[0], Service: parts[1], Payload: payload})
		w.Write([]byte("[]"))
	default:
		http.NotFound(w, r)
	}
}

var testUpgrader = websocket.Upgrader{}

// handleWebsocket runs the hub side of the auth handshake, answers
// correlated requests with success results, and keeps the connection open
// for event pushes until the client hangs up.
func (h *fakeHub) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	conn, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn.WriteJSON(map[string]any{"type": "auth_required"})

	var auth struct {
		Type        string `json:"type"`
		AccessToken string `json:"access_token"`
	}
	if err := conn.ReadJSON(&auth); err != nil {
		conn.Close()
		return
	}

	h.mu.Lock()
	reject := h.rejectAuth || auth.AccessToken != "test-token"
	h.mu.Unlock()

	if reject {
		conn.WriteJSON(map[string]any{"type": "auth_invalid", "message": "Invalid access token"})
		conn.Close()
		return
	}
	conn.WriteJSON(map[string]any{"type": "auth_ok"})

	h.mu.Lock()
	h.conns = append(h.conns, conn)
	h.mu.Unlock()

	go func() {
		defer conn.Close()
		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			if id, ok := msg["id"].(float64); ok {
				h.mu.Lock()
				h.wsIDs = append(h.wsIDs, int64(id))
				if !h.silentWS {
					conn.WriteJSON(map[string]any{"id": int64(id), "type": "result", "success": true})
				}
				h.mu.Unlock()
			}
		}
	}()
}

// pushEvent delivers a state_changed event on every open connection.
func (h *fakeHub) pushEvent(data stateChangedData) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.conns {
		conn.WriteJSON(map[string]any{
			"type": "event",
			"event": map[string]any{
				"event_type": "state_changed",
				"data":       data,
			},
		})
	}
}

// dropConnections closes every open WebSocket connection server-side.
func (h *fakeHub) dropConnections() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, conn := range h.conns {
		conn.Close()
	}
	h.conns = nil
}
