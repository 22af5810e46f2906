package hass

import (
	"testing"
)

func entityState(id, state string) stateChangedData {
	return stateChangedData{
		EntityID: id,
		NewState: &Entity{EntityID: id, State: state},
	}
}

func TestCacheLastWritePerEntityWins(t *testing.T) {
	c := newStateCache(noopLogger{})

	c.Apply(entityState("light.kitchen", "off"))
	c.Apply(entityState("switch.fan", "on"))
	c.Apply(entityState("light.kitchen", "on"))
	c.Apply(entityState("switch.fan", "off"))
	c.Apply(entityState("light.kitchen", "off"))

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if e, _ := c.Get("light.kitchen"); e.State != "off" {
		t.Errorf("light.kitchen state = %q, want off", e.State)
	}
	if e, _ := c.Get("switch.fan"); e.State != "off" {
		t.Errorf("switch.fan state = %q, want off", e.State)
	}
}

func TestCacheOrderIndependenceAcrossEntities(t *testing.T) {
	// Interleaving records for other entities must not affect the final
	// state of any one entity.
	a := newStateCache(noopLogger{})
	a.Apply(entityState("light.a", "on"))
	a.Apply(entityState("light.b", "on"))
	a.Apply(entityState("light.a", "off"))

	b := newStateCache(noopLogger{})
	b.Apply(entityState("light.a", "on"))
	b.Apply(entityState("light.a", "off"))
	b.Apply(entityState("light.b", "on"))

	for _, id := range []string{"light.a", "light.b"} {
		ea, _ := a.Get(id)
		eb, _ := b.Get(id)
		if ea.State != eb.State {
			t.Errorf("%s: %q vs %q, want identical final state", id, ea.State, eb.State)
		}
	}
}

func TestCacheReplaceAllKeepsAreas(t *testing.T) {
	c := newStateCache(noopLogger{})
	c.SetAreas(map[string]string{"light.kitchen": "Kitchen"})
	c.ReplaceAll([]Entity{{EntityID: "light.kitchen", State: "on"}})

	if got := c.Area("light.kitchen"); got != "Kitchen" {
		t.Errorf("Area() = %q, want Kitchen", got)
	}
}

func TestCacheRemovesDeletedEntity(t *testing.T) {
	c := newStateCache(noopLogger{})
	c.Apply(entityState("light.kitchen", "on"))
	c.Apply(stateChangedData{EntityID: "light.kitchen", NewState: nil})

	if _, ok := c.Get("light.kitchen"); ok {
		t.Error("entity should be removed when new state is nil")
	}
}

func TestCacheListenerReceivesDeviceView(t *testing.T) {
	c := newStateCache(noopLogger{})
	c.SetAreas(map[string]string{"light.kitchen": "Kitchen"})

	var got []Device
	unsubscribe := c.Subscribe(func(d Device) { got = append(got, d) })
	defer unsubscribe()

	c.Apply(entityState("light.kitchen", "on"))

	if len(got) != 1 {
		t.Fatalf("listener called %d times, want 1", len(got))
	}
	if got[0].EntityID != "light.kitchen" || !got[0].Active || got[0].Area != "Kitchen" {
		t.Errorf("unexpected device: %+v", got[0])
	}
}

func TestCacheListenerSkipsExcludedDomains(t *testing.T) {
	c := newStateCache(noopLogger{})

	calls := 0
	defer c.Subscribe(func(Device) { calls++ })()

	c.Apply(entityState("automation.morning", "on"))
	c.Apply(entityState("light.kitchen", "on"))

	if calls != 1 {
		t.Errorf("listener called %d times, want 1", calls)
	}
}

func TestCachePanickingListenerIsIsolated(t *testing.T) {
	c := newStateCache(noopLogger{})

	healthy := 0
	defer c.Subscribe(func(Device) { panic("listener bug") })()
	defer c.Subscribe(func(Device) { healthy++ })()

	c.Apply(entityState("light.kitchen", "on"))
	c.Apply(entityState("light.kitchen", "off"))

	if healthy != 2 {
		t.Errorf("healthy listener called %d times, want 2", healthy)
	}
}

func TestCacheUnsubscribeStopsDelivery(t *testing.T) {
	c := newStateCache(noopLogger{})

	calls := 0
	unsubscribe := c.Subscribe(func(Device) { calls++ })

	c.Apply(entityState("light.kitchen", "on"))
	unsubscribe()
	c.Apply(entityState("light.kitchen", "off"))

	if calls != 1 {
		t.Errorf("listener called %d times after unsubscribe, want 1", calls)
	}
}

func TestCacheClear(t *testing.T) {
	c := newStateCache(noopLogger{})
	c.Apply(entityState("light.kitchen", "on"))
	c.SetAreas(map[string]string{"light.kitchen": "Kitchen"})

	c.Clear()

	if c.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", c.Len())
	}
	if c.Area("light.kitchen") != "" {
		t.Error("areas should be cleared")
	}
}
