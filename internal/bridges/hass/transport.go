package hass

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// maxResponseBody caps REST response bodies to prevent memory exhaustion
// from a misbehaving hub.
const maxResponseBody = 8 << 20 // 8MB

// HTTPError is returned for REST calls the hub answered with a non-2xx
// status. Body carries the (truncated) response payload for diagnostics.
type HTTPError struct {
	Status int
	Body   string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("hass: hub returned status %d: %s", e.Status, e.Body)
}

// transport issues authenticated REST calls against the hub.
//
// Every call attaches the configured token as a bearer credential. The
// transport is stateless; the persistent WebSocket connection is owned by
// the reconnection supervisor, not by this type.
type transport struct {
	baseURL string
	token   string
	client  *http.Client
}

// newTransport creates a REST transport for the given hub configuration.
func newTransport(cfg Config) *transport {
	return &transport{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		token:   cfg.Token,
		client:  &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// call performs a single REST request and returns the response body.
// Non-2xx responses are returned as *HTTPError.
func (t *transport) call(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling hub: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &HTTPError{Status: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

// CheckAPI probes the hub's root status endpoint. The hub answers with a
// JSON object containing a "message" field when the API is alive.
func (t *transport) CheckAPI(ctx context.Context) error {
	data, err := t.call(ctx, http.MethodGet, "/api/", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrHubUnreachable, err)
	}

	var status struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &status); err != nil || status.Message == "" {
		return fmt.Errorf("%w: unexpected status response", ErrHubUnreachable)
	}
	return nil
}

// States loads the full entity snapshot from the hub.
func (t *transport) States(ctx context.Context) ([]Entity, error) {
	data, err := t.call(ctx, http.MethodGet, "/api/states", nil)
	if err != nil {
		return nil, fmt.Errorf("loading states: %w", err)
	}

	var entities []Entity
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, fmt.Errorf("decoding states: %w", err)
	}
	return entities, nil
}

// registryEntry is one row of the hub's entity registry, mapping an entity
// to its area.
type registryEntry struct {
	EntityID string `json:"entity_id"`
	AreaID   string `json:"area_id"`
	Name     string `json:"name"`
}

// areaEntry is one row of the hub's area registry.
type areaEntry struct {
	AreaID string `json:"area_id"`
	Name   string `json:"name"`
}

// EntityRegistry loads the entity→area assignments. Best-effort metadata:
// callers treat failures as non-fatal.
func (t *transport) EntityRegistry(ctx context.Context) ([]registryEntry, error) {
	data, err := t.call(ctx, http.MethodGet, "/api/config/entity_registry/list", nil)
	if err != nil {
		return nil, fmt.Errorf("loading entity registry: %w", err)
	}

	var entries []registryEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding entity registry: %w", err)
	}
	return entries, nil
}

// AreaRegistry loads the hub's area definitions. Best-effort metadata.
func (t *transport) AreaRegistry(ctx context.Context) ([]areaEntry, error) {
	data, err := t.call(ctx, http.MethodGet, "/api/config/area_registry/list", nil)
	if err != nil {
		return nil, fmt.Errorf("loading area registry: %w", err)
	}

	var entries []areaEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding area registry: %w", err)
	}
	return entries, nil
}

// CallService invokes a domain-scoped hub service. The payload carries
// entity_id (string or array) plus domain-specific fields such as
// brightness_pct. Invocation failures are not retried here; retries are the
// caller's decision.
func (t *transport) CallService(ctx context.Context, domain, service string, payload map[string]any) error {
	path := fmt.Sprintf("/api/services/%s/%s", domain, service)
	if _, err := t.call(ctx, http.MethodPost, path, payload); err != nil {
		return fmt.Errorf("%w: %s.%s: %w", ErrServiceCall, domain, service, err)
	}
	return nil
}

// withTimeout returns a derived context bounded by the default HTTP timeout
// unless the parent already carries an earlier deadline.
func withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < defaultHTTPTimeout {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, defaultHTTPTimeout)
}
