package hass

import (
	"sync"
)

// StateListener receives a device snapshot whenever an entity's state
// changes. Listeners run on the event dispatch goroutine; slow listeners
// delay subsequent events, so hand work off to a channel or goroutine when
// processing is not trivial.
type StateListener func(Device)

// stateCache is the bridge's in-memory entity store.
//
// It is populated by the initial REST snapshot and kept current by
// state_changed events. Updates replace the whole entity record; there is no
// attribute-level merge, which makes per-entity updates idempotent and
// immune to cross-entity ordering.
//
// Thread Safety: all methods are safe for concurrent use. Event application
// happens on the single receive goroutine, so per-entity FIFO ordering from
// the hub is preserved.
type stateCache struct {
	mu       sync.RWMutex
	entities map[string]Entity
	areas    map[string]string // entity id → area name

	listenerMu sync.Mutex
	listeners  map[int]StateListener
	nextToken  int

	logger Logger
}

// newStateCache creates an empty cache.
func newStateCache(logger Logger) *stateCache {
	return &stateCache{
		entities:  make(map[string]Entity),
		areas:     make(map[string]string),
		listeners: make(map[int]StateListener),
		logger:    logger,
	}
}

// ReplaceAll swaps the full entity set, as loaded from the REST snapshot.
// Area assignments are kept; they come from the registry, not from states.
func (c *stateCache) ReplaceAll(entities []Entity) {
	fresh := make(map[string]Entity, len(entities))
	for _, e := range entities {
		fresh[e.EntityID] = e
	}

	c.mu.Lock()
	c.entities = fresh
	c.mu.Unlock()
}

// Apply stores one state_changed record. A nil new state removes the entity
// (the hub deleted it). The updated device snapshot, if any, is fanned out
// to listeners after the cache write completes.
func (c *stateCache) Apply(data stateChangedData) {
	if data.NewState == nil {
		c.mu.Lock()
		delete(c.entities, data.EntityID)
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.entities[data.EntityID] = *data.NewState
	area := c.areas[data.EntityID]
	c.mu.Unlock()

	dev := ToDevice(*data.NewState, area)
	if dev == nil {
		return
	}
	c.notify(*dev)
}

// Get returns the entity by id.
func (c *stateCache) Get(entityID string) (Entity, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entities[entityID]
	return e, ok
}

// All returns a copy of every cached entity.
func (c *stateCache) All() []Entity {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]Entity, 0, len(c.entities))
	for _, e := range c.entities {
		out = append(out, e)
	}
	return out
}

// Len returns the number of cached entities.
func (c *stateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entities)
}

// SetAreas replaces the entity→area name assignments.
func (c *stateCache) SetAreas(areas map[string]string) {
	c.mu.Lock()
	c.areas = areas
	c.mu.Unlock()
}

// Area returns the area name assigned to an entity, or "".
func (c *stateCache) Area(entityID string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.areas[entityID]
}

// Clear empties the cache. Called on reconfiguration so stale entities from
// a previous hub never leak into the new session.
func (c *stateCache) Clear() {
	c.mu.Lock()
	c.entities = make(map[string]Entity)
	c.areas = make(map[string]string)
	c.mu.Unlock()
}

// Subscribe registers a listener for device state changes and returns a
// function that removes it.
func (c *stateCache) Subscribe(fn StateListener) func() {
	c.listenerMu.Lock()
	token := c.nextToken
	c.nextToken++
	c.listeners[token] = fn
	c.listenerMu.Unlock()

	return func() {
		c.listenerMu.Lock()
		delete(c.listeners, token)
		c.listenerMu.Unlock()
	}
}

// notify fans a device snapshot out to every listener. A panicking listener
// is logged and skipped; it must not take the receive loop down with it.
func (c *stateCache) notify(dev Device) {
	c.listenerMu.Lock()
	fns := make([]StateListener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.listenerMu.Unlock()

	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("state listener panicked", "entity_id", dev.EntityID, "panic", r)
				}
			}()
			fn(dev)
		}()
	}
}
