package statepub

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/hearthvoice/hearth-core/internal/bridges/hass"
	"github.com/hearthvoice/hearth-core/internal/infrastructure/mqtt"
)

type publishedMessage struct {
	topic   string
	payload []byte
}

// fakeBroker records publishes and captures the command handler.
type fakeBroker struct {
	published      []publishedMessage
	commandHandler mqtt.MessageHandler
	subscribed     []string
	unsubscribed   []string
}

func (b *fakeBroker) PublishRetained(topic string, payload []byte) error {
	b.published = append(b.published, publishedMessage{topic, payload})
	return nil
}

func (b *fakeBroker) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	b.subscribed = append(b.subscribed, topic)
	b.commandHandler = handler
	return nil
}

func (b *fakeBroker) Unsubscribe(topic string) error {
	b.unsubscribed = append(b.unsubscribed, topic)
	return nil
}

type dispatched struct {
	method     string
	query      string
	brightness *int
}

// fakeBridge records dispatched commands and feeds a listener.
type fakeBridge struct {
	listener hass.StateListener
	calls    []dispatched
}

func (f *fakeBridge) OnStateChange(fn hass.StateListener) func() {
	f.listener = fn
	return func() { f.listener = nil }
}

func (f *fakeBridge) ConnectionStatus() hass.ConnectionState {
	return hass.StateConnected
}

func (f *fakeBridge) TurnOn(_ context.Context, query string, opts hass.TurnOnOptions) (hass.CommandResult, error) {
	f.calls = append(f.calls, dispatched{"turn_on", query, opts.Brightness})
	return hass.CommandResult{Done: true}, nil
}

func (f *fakeBridge) TurnOff(_ context.Context, query string) (hass.CommandResult, error) {
	f.calls = append(f.calls, dispatched{"turn_off", query, nil})
	return hass.CommandResult{Done: true}, nil
}

func (f *fakeBridge) Toggle(_ context.Context, query string) (hass.CommandResult, error) {
	f.calls = append(f.calls, dispatched{"toggle", query, nil})
	return hass.CommandResult{Done: true}, nil
}

func (f *fakeBridge) SetBrightness(_ context.Context, query string, pct int) (hass.CommandResult, error) {
	f.calls = append(f.calls, dispatched{"set_brightness", query, &pct})
	return hass.CommandResult{Done: true}, nil
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

func startPublisher(t *testing.T) (*Publisher, *fakeBroker, *fakeBridge) {
	t.Helper()

	broker := &fakeBroker{}
	bridge := &fakeBridge{}
	pub := New(broker, bridge, noopLogger{})
	if err := pub.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return pub, broker, bridge
}

func TestStartSubscribesAndMirrorsHubStatus(t *testing.T) {
	_, broker, _ := startPublisher(t)

	if len(broker.subscribed) != 1 || broker.subscribed[0] != "hearth/device/+/command" {
		t.Errorf("subscribed = %v, want device command pattern", broker.subscribed)
	}

	if len(broker.published) != 1 || broker.published[0].topic != "hearth/hub/status" {
		t.Fatalf("published = %v, want hub status", broker.published)
	}
	if !strings.Contains(string(broker.published[0].payload), "connected") {
		t.Errorf("hub status payload = %s", broker.published[0].payload)
	}
}

func TestStateChangeIsRepublished(t *testing.T) {
	_, broker, bridge := startPublisher(t)

	pct := 80
	bridge.listener(hass.Device{
		EntityID:   "light.kitchen",
		Name:       "Kitchen Light",
		Type:       hass.DeviceLight,
		State:      "on",
		Active:     true,
		Brightness: &pct,
	})

	last := broker.published[len(broker.published)-1]
	if last.topic != "hearth/device/light.kitchen/state" {
		t.Errorf("topic = %q, want device state topic", last.topic)
	}

	var dev hass.Device
	if err := json.Unmarshal(last.payload, &dev); err != nil {
		t.Fatalf("payload is not a device: %v", err)
	}
	if dev.EntityID != "light.kitchen" || !dev.Active || *dev.Brightness != 80 {
		t.Errorf("payload device = %+v", dev)
	}
}

func TestCommandDispatch(t *testing.T) {
	_, broker, bridge := startPublisher(t)

	err := broker.commandHandler("hearth/device/light.kitchen/command", []byte(`{"action":"turn_on","brightness":40}`))
	if err != nil {
		t.Fatalf("command handler error = %v", err)
	}

	if len(bridge.calls) != 1 {
		t.Fatalf("bridge saw %d calls, want 1", len(bridge.calls))
	}
	call := bridge.calls[0]
	if call.method != "turn_on" || call.query != "light.kitchen" {
		t.Errorf("call = %+v", call)
	}
	if call.brightness == nil || *call.brightness != 40 {
		t.Errorf("brightness = %v, want 40", call.brightness)
	}
}

func TestCommandDispatchActions(t *testing.T) {
	tests := []struct {
		payload string
		method  string
	}{
		{`{"action":"turn_off"}`, "turn_off"},
		{`{"action":"toggle"}`, "toggle"},
		{`{"action":"set_brightness","brightness":60}`, "set_brightness"},
	}

	for _, tt := range tests {
		_, broker, bridge := startPublisher(t)
		if err := broker.commandHandler("hearth/device/switch.fan/command", []byte(tt.payload)); err != nil {
			t.Errorf("%s: handler error = %v", tt.method, err)
			continue
		}
		if len(bridge.calls) != 1 || bridge.calls[0].method != tt.method {
			t.Errorf("%s: calls = %+v", tt.method, bridge.calls)
		}
	}
}

func TestCommandRejectsMalformed(t *testing.T) {
	_, broker, bridge := startPublisher(t)

	cases := []struct {
		name    string
		topic   string
		payload string
	}{
		{"bad topic", "hearth/other/topic", `{"action":"turn_on"}`},
		{"bad json", "hearth/device/light.kitchen/command", `{not json`},
		{"unknown action", "hearth/device/light.kitchen/command", `{"action":"explode"}`},
		{"set_brightness without value", "hearth/device/light.kitchen/command", `{"action":"set_brightness"}`},
	}

	for _, tc := range cases {
		if err := broker.commandHandler(tc.topic, []byte(tc.payload)); err == nil {
			t.Errorf("%s: expected error", tc.name)
		}
	}
	if len(bridge.calls) != 0 {
		t.Errorf("bridge saw %d calls, want none", len(bridge.calls))
	}
}

func TestStopDetaches(t *testing.T) {
	pub, broker, bridge := startPublisher(t)

	pub.Stop()

	if bridge.listener != nil {
		t.Error("listener should be removed after Stop")
	}
	if len(broker.unsubscribed) != 1 {
		t.Errorf("unsubscribed = %v, want one entry", broker.unsubscribed)
	}
}

func TestCommandTarget(t *testing.T) {
	tests := []struct {
		topic string
		want  string
		ok    bool
	}{
		{"hearth/device/light.kitchen/command", "light.kitchen", true},
		{"hearth/device/switch.fan/command", "switch.fan", true},
		{"hearth/device//command", "", false},
		{"hearth/device/a/b/command", "", false},
		{"hearth/hub/status", "", false},
	}

	for _, tt := range tests {
		got, ok := commandTarget(tt.topic)
		if got != tt.want || ok != tt.ok {
			t.Errorf("commandTarget(%q) = %q, %v; want %q, %v", tt.topic, got, ok, tt.want, tt.ok)
		}
	}
}
