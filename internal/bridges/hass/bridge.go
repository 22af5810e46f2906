package hass

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Logger is the minimal logging interface the bridge depends on. It matches
// the application's structured logger but keeps this package decoupled from
// any specific implementation.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is provided.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Status is a point-in-time summary of the bridge for health endpoints.
type Status struct {
	Configured  bool            `json:"configured"`
	Connection  ConnectionState `json:"connection"`
	DeviceCount int             `json:"device_count"`
	LastError   string          `json:"last_error,omitempty"`
}

// Bridge connects the application to a Home Assistant hub.
//
// A Bridge is constructed unconfigured; Configure establishes the REST and
// WebSocket sessions and loads the entity snapshot. Reconfiguring tears the
// previous session down completely, including the entity cache, so stale
// entities from the old hub never survive a credential or URL change.
//
// Thread Safety: all exported methods are safe for concurrent use.
type Bridge struct {
	logger Logger

	mu         sync.RWMutex
	configured bool
	cfg        Config
	transport  *transport
	sup        *supervisor

	cache *stateCache
}

// New creates an unconfigured bridge. A nil logger disables logging.
func New(logger Logger) *Bridge {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Bridge{
		logger: logger,
		cache:  newStateCache(logger),
	}
}

// Configure validates the hub is reachable, loads the full entity snapshot,
// loads area assignments best-effort, and starts the supervised WebSocket
// session. Returns the number of entities loaded.
//
// A rejected credential fails with ErrAuthRejected and leaves the bridge
// unconfigured. An unreachable hub fails with ErrHubUnreachable. Registry
// failures are logged and ignored; area lookups degrade to empty.
func (b *Bridge) Configure(ctx context.Context, cfg Config) (int, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return 0, err
	}

	// Tear down any previous session before touching shared state.
	b.teardown()

	t := newTransport(cfg)

	probeCtx, cancel := withTimeout(ctx)
	err := t.CheckAPI(probeCtx)
	cancel()
	if err != nil {
		return 0, err
	}

	statesCtx, cancel := withTimeout(ctx)
	entities, err := t.States(statesCtx)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrHubUnreachable, err)
	}

	b.cache.ReplaceAll(entities)
	if cfg.AutoDiscovery {
		b.loadAreas(ctx, t)
	}

	sup := newSupervisor(cfg, b.cache.Apply, b.logger)
	if err := sup.Start(ctx); err != nil {
		b.cache.Clear()
		return 0, err
	}

	b.mu.Lock()
	b.configured = true
	b.cfg = cfg
	b.transport = t
	b.sup = sup
	b.mu.Unlock()

	b.logger.Info("hub configured", "url", cfg.URL, "entities", len(entities))
	return len(entities), nil
}

// loadAreas resolves entity→area names from the hub registries. Best-effort:
// failures degrade area-based lookups, they never fail configuration.
func (b *Bridge) loadAreas(ctx context.Context, t *transport) {
	regCtx, cancel := withTimeout(ctx)
	defer cancel()

	entries, err := t.EntityRegistry(regCtx)
	if err != nil {
		b.logger.Warn("entity registry unavailable, area lookups disabled", "error", err)
		return
	}

	areaCtx, cancel := withTimeout(ctx)
	defer cancel()

	areaNames := make(map[string]string)
	areas, err := t.AreaRegistry(areaCtx)
	if err != nil {
		b.logger.Warn("area registry unavailable, using raw area ids", "error", err)
	} else {
		for _, a := range areas {
			areaNames[a.AreaID] = a.Name
		}
	}

	assignments := make(map[string]string)
	for _, e := range entries {
		if e.AreaID == "" {
			continue
		}
		name := areaNames[e.AreaID]
		if name == "" {
			name = e.AreaID
		}
		assignments[e.EntityID] = name
	}
	b.cache.SetAreas(assignments)
}

// IsConfigured reports whether Configure has completed successfully.
func (b *Bridge) IsConfigured() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.configured
}

// Status returns a point-in-time summary of the bridge.
func (b *Bridge) Status() Status {
	b.mu.RLock()
	sup := b.sup
	configured := b.configured
	b.mu.RUnlock()

	st := Status{
		Configured:  configured,
		Connection:  StateDisconnected,
		DeviceCount: len(b.GetAllDevices()),
	}
	if sup != nil {
		st.Connection = sup.State()
		if err := sup.LastErr(); err != nil {
			st.LastError = err.Error()
		}
	}
	return st
}

// Disconnect tears the session down and clears the entity cache. The bridge
// returns to the unconfigured state; Configure may be called again.
func (b *Bridge) Disconnect() {
	b.teardown()
	b.cache.Clear()
	b.logger.Info("hub disconnected")
}

// teardown stops the supervisor and forgets the session, if any.
func (b *Bridge) teardown() {
	b.mu.Lock()
	sup := b.sup
	b.sup = nil
	b.transport = nil
	b.configured = false
	b.mu.Unlock()

	if sup != nil {
		sup.Stop()
	}
}

// GetAllDevices returns the device view of every cached entity, sorted by
// entity id. Entities in excluded domains are omitted.
func (b *Bridge) GetAllDevices() []Device {
	entities := b.cache.All()
	sort.Slice(entities, func(i, j int) bool { return entities[i].EntityID < entities[j].EntityID })

	devices := make([]Device, 0, len(entities))
	for _, e := range entities {
		if dev := ToDevice(e, b.cache.Area(e.EntityID)); dev != nil {
			devices = append(devices, *dev)
		}
	}
	return devices
}

// GetDevicesByType returns devices of one type, sorted by entity id.
func (b *Bridge) GetDevicesByType(typ DeviceType) []Device {
	var out []Device
	for _, dev := range b.GetAllDevices() {
		if dev.Type == typ {
			out = append(out, dev)
		}
	}
	return out
}

// GetDevicesByArea returns devices whose area name matches the query
// case-insensitively (substring), sorted by entity id.
func (b *Bridge) GetDevicesByArea(area string) []Device {
	q := strings.ToLower(area)

	var out []Device
	for _, dev := range b.GetAllDevices() {
		if dev.Area != "" && strings.Contains(strings.ToLower(dev.Area), q) {
			out = append(out, dev)
		}
	}
	return out
}

// FindDevice resolves a device by exact entity id, falling back to a
// case-insensitive substring match against display names. Candidates are
// scanned in entity id order, so an ambiguous query resolves to the
// lexicographically smallest match.
func (b *Bridge) FindDevice(query string) (Device, bool) {
	if e, ok := b.cache.Get(query); ok {
		if dev := ToDevice(e, b.cache.Area(e.EntityID)); dev != nil {
			return *dev, true
		}
	}

	q := strings.ToLower(query)
	for _, dev := range b.GetAllDevices() {
		if strings.Contains(strings.ToLower(dev.Name), q) {
			return dev, true
		}
	}
	return Device{}, false
}

// OnStateChange registers a listener for device state changes and returns a
// function that removes it. Listeners receive the normalized device view;
// excluded-domain entities are never delivered.
func (b *Bridge) OnStateChange(fn StateListener) func() {
	return b.cache.Subscribe(fn)
}

// currentTransport returns the active REST transport, or nil when the
// bridge is unconfigured.
func (b *Bridge) currentTransport() *transport {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.transport
}

// ConnectionStatus returns the supervisor's connection state, or
// StateDisconnected when unconfigured.
func (b *Bridge) ConnectionStatus() ConnectionState {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.sup == nil {
		return StateDisconnected
	}
	return b.sup.State()
}

// IsAuthError reports whether err stems from a rejected credential.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrAuthRejected)
}
