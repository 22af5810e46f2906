package hass

import (
	"context"
	"errors"
	"testing"
	"time"
)

func configuredBridge(t *testing.T, hub *fakeHub) *Bridge {
	t.Helper()

	b := New(nil)
	count, err := b.Configure(context.Background(), hub.config())
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	hub.mu.Lock()
	want := len(hub.entities)
	hub.mu.Unlock()
	if count != want {
		t.Fatalf("Configure returned %d entities, want %d", count, want)
	}
	t.Cleanup(b.Disconnect)
	return b
}

func kitchenAndFan(t *testing.T) *fakeHub {
	t.Helper()
	hub := newFakeHub(t)
	hub.setEntities(
		Entity{EntityID: "light.kitchen", State: "off", Attributes: Attributes{"friendly_name": "Kitchen Light"}},
		Entity{EntityID: "switch.fan", State: "on", Attributes: Attributes{"friendly_name": "Ceiling Fan"}},
	)
	return hub
}

func TestBridgeConfigure(t *testing.T) {
	hub := kitchenAndFan(t)
	b := configuredBridge(t, hub)

	if !b.IsConfigured() {
		t.Error("IsConfigured = false after Configure")
	}

	devices := b.GetAllDevices()
	if len(devices) != 2 {
		t.Fatalf("GetAllDevices returned %d, want 2", len(devices))
	}
	if devices[0].EntityID != "light.kitchen" || devices[0].Active {
		t.Errorf("kitchen light = %+v, want inactive", devices[0])
	}
	if devices[1].EntityID != "switch.fan" || !devices[1].Active {
		t.Errorf("fan = %+v, want active", devices[1])
	}
}

func TestBridgeConfigureUnreachable(t *testing.T) {
	b := New(nil)
	_, err := b.Configure(context.Background(), Config{URL: "http://127.0.0.1:1", Token: "tok"})
	if !errors.Is(err, ErrHubUnreachable) {
		t.Errorf("error = %v, want ErrHubUnreachable", err)
	}
	if b.IsConfigured() {
		t.Error("bridge should remain unconfigured after failure")
	}
}

func TestBridgeConfigureRejectedToken(t *testing.T) {
	hub := kitchenAndFan(t)
	// The hub accepts REST but rejects the socket handshake, isolating the
	// WebSocket auth path.
	hub.mu.Lock()
	hub.rejectAuth = true
	hub.mu.Unlock()

	b := New(nil)
	_, err := b.Configure(context.Background(), hub.config())
	if !errors.Is(err, ErrAuthRejected) {
		t.Fatalf("error = %v, want ErrAuthRejected", err)
	}
	if b.IsConfigured() {
		t.Error("bridge should remain unconfigured after rejected handshake")
	}
	if st := b.Status(); st.Connection != StateDisconnected {
		t.Errorf("connection = %s, want disconnected", st.Connection)
	}
	if len(b.GetAllDevices()) != 0 {
		t.Error("cache should be cleared after rejected handshake")
	}
}

func TestBridgeStatus(t *testing.T) {
	hub := kitchenAndFan(t)
	b := configuredBridge(t, hub)

	st := b.Status()
	if !st.Configured {
		t.Error("Status.Configured = false")
	}
	if st.Connection != StateConnected {
		t.Errorf("Status.Connection = %s, want connected", st.Connection)
	}
	if st.DeviceCount != 2 {
		t.Errorf("Status.DeviceCount = %d, want 2", st.DeviceCount)
	}
}

func TestBridgeDisconnect(t *testing.T) {
	hub := kitchenAndFan(t)
	b := configuredBridge(t, hub)

	b.Disconnect()

	if b.IsConfigured() {
		t.Error("IsConfigured = true after Disconnect")
	}
	if len(b.GetAllDevices()) != 0 {
		t.Error("cache should be empty after Disconnect")
	}
	if st := b.Status(); st.Connection != StateDisconnected {
		t.Errorf("connection = %s, want disconnected", st.Connection)
	}
}

func TestBridgeAreas(t *testing.T) {
	hub := kitchenAndFan(t)
	hub.setRegistry(
		[]registryEntry{
			{EntityID: "light.kitchen", AreaID: "kitchen"},
			{EntityID: "switch.fan", AreaID: "bedroom"},
		},
		[]areaEntry{
			{AreaID: "kitchen", Name: "Kitchen"},
			{AreaID: "bedroom", Name: "Bedroom"},
		},
	)
	b := configuredBridge(t, hub)

	devices := b.GetDevicesByArea("kitchen")
	if len(devices) != 1 || devices[0].EntityID != "light.kitchen" {
		t.Errorf("GetDevicesByArea(kitchen) = %+v, want kitchen light only", devices)
	}
	if devices[0].Area != "Kitchen" {
		t.Errorf("Area = %q, want Kitchen", devices[0].Area)
	}
}

func TestBridgeGetDevicesByType(t *testing.T) {
	hub := kitchenAndFan(t)
	b := configuredBridge(t, hub)

	lights := b.GetDevicesByType(DeviceLight)
	if len(lights) != 1 || lights[0].EntityID != "light.kitchen" {
		t.Errorf("GetDevicesByType(light) = %+v", lights)
	}
}

func TestBridgeFindDevice(t *testing.T) {
	hub := kitchenAndFan(t)
	b := configuredBridge(t, hub)

	// Exact id wins.
	if dev, ok := b.FindDevice("light.kitchen"); !ok || dev.EntityID != "light.kitchen" {
		t.Errorf("FindDevice(light.kitchen) = %+v, %v", dev, ok)
	}

	// Case-insensitive substring on name.
	if dev, ok := b.FindDevice("kitchen"); !ok || dev.EntityID != "light.kitchen" {
		t.Errorf("FindDevice(kitchen) = %+v, %v", dev, ok)
	}
	if dev, ok := b.FindDevice("CEILING"); !ok || dev.EntityID != "switch.fan" {
		t.Errorf("FindDevice(CEILING) = %+v, %v", dev, ok)
	}

	if _, ok := b.FindDevice("nonexistent"); ok {
		t.Error("FindDevice(nonexistent) should miss")
	}
}

func TestBridgeFindDeviceAmbiguousTakesSmallestID(t *testing.T) {
	hub := newFakeHub(t)
	hub.setEntities(
		Entity{EntityID: "light.lamp_b", State: "off", Attributes: Attributes{"friendly_name": "Lamp"}},
		Entity{EntityID: "light.lamp_a", State: "off", Attributes: Attributes{"friendly_name": "Lamp"}},
	)
	b := configuredBridge(t, hub)

	dev, ok := b.FindDevice("lamp")
	if !ok || dev.EntityID != "light.lamp_a" {
		t.Errorf("FindDevice(lamp) = %+v, want light.lamp_a", dev)
	}
}

func TestBridgeStateChangeListener(t *testing.T) {
	hub := kitchenAndFan(t)
	b := configuredBridge(t, hub)

	updates := make(chan Device, 1)
	defer b.OnStateChange(func(d Device) { updates <- d })()

	hub.pushEvent(entityState("light.kitchen", "on"))

	select {
	case dev := <-updates:
		if dev.EntityID != "light.kitchen" || !dev.Active {
			t.Errorf("update = %+v, want active kitchen light", dev)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("state change not delivered")
	}
}

func TestBridgeReconfigureClearsOldEntities(t *testing.T) {
	first := kitchenAndFan(t)
	b := configuredBridge(t, first)

	second := newFakeHub(t)
	second.setEntities(Entity{EntityID: "lock.front_door", State: "locked"})

	if _, err := b.Configure(context.Background(), second.config()); err != nil {
		t.Fatalf("reconfigure failed: %v", err)
	}

	devices := b.GetAllDevices()
	if len(devices) != 1 || devices[0].EntityID != "lock.front_door" {
		t.Errorf("devices after reconfigure = %+v, want lock only", devices)
	}
}
