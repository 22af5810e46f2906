package hass

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// CommandResult is the unified outcome of a control command.
//
// Done reports whether the hub was actually told to do something; Message is
// always user-presentable. A device-resolution miss is a normal outcome
// (Done false, explanatory Message, nil error), not an error: it is an
// expected user-input condition. Transport and hub failures come back as a
// non-nil error alongside a generic Message.
type CommandResult struct {
	Done    bool   `json:"done"`
	Message string `json:"message"`
}

// TurnOnOptions carries optional fields for TurnOn.
type TurnOnOptions struct {
	// Brightness, when set on a light, is the target level in percent.
	Brightness *int
}

// TurnOn switches the resolved device on. For lights a brightness
// percentage may be included.
func (b *Bridge) TurnOn(ctx context.Context, query string, opts TurnOnOptions) (CommandResult, error) {
	dev, ok := b.FindDevice(query)
	if !ok {
		return notFoundResult(query), nil
	}

	payload := map[string]any{"entity_id": dev.EntityID}
	suffix := ""
	if dev.Type == DeviceLight && opts.Brightness != nil {
		pct := clampPct(*opts.Brightness)
		payload["brightness_pct"] = pct
		suffix = fmt.Sprintf(" at %d%% brightness", pct)
	}

	if err := b.callService(ctx, dev.EntityID, "turn_on", payload); err != nil {
		return failedResult(dev.Name), err
	}
	return CommandResult{Done: true, Message: fmt.Sprintf("Turned on %s%s.", dev.Name, suffix)}, nil
}

// TurnOff switches the resolved device off.
func (b *Bridge) TurnOff(ctx context.Context, query string) (CommandResult, error) {
	dev, ok := b.FindDevice(query)
	if !ok {
		return notFoundResult(query), nil
	}

	payload := map[string]any{"entity_id": dev.EntityID}
	if err := b.callService(ctx, dev.EntityID, "turn_off", payload); err != nil {
		return failedResult(dev.Name), err
	}
	return CommandResult{Done: true, Message: fmt.Sprintf("Turned off %s.", dev.Name)}, nil
}

// Toggle flips the resolved device's state.
func (b *Bridge) Toggle(ctx context.Context, query string) (CommandResult, error) {
	dev, ok := b.FindDevice(query)
	if !ok {
		return notFoundResult(query), nil
	}

	payload := map[string]any{"entity_id": dev.EntityID}
	if err := b.callService(ctx, dev.EntityID, "toggle", payload); err != nil {
		return failedResult(dev.Name), err
	}
	return CommandResult{Done: true, Message: fmt.Sprintf("Toggled %s.", dev.Name)}, nil
}

// SetBrightness sets a light's brightness in percent. Non-light devices are
// declined with a descriptive message rather than an error.
func (b *Bridge) SetBrightness(ctx context.Context, query string, pct int) (CommandResult, error) {
	dev, ok := b.FindDevice(query)
	if !ok {
		return notFoundResult(query), nil
	}
	if dev.Type != DeviceLight {
		msg := fmt.Sprintf("%s is not a light, so I can't set its brightness.", dev.Name)
		return CommandResult{Done: false, Message: msg}, nil
	}

	pct = clampPct(pct)
	payload := map[string]any{"entity_id": dev.EntityID, "brightness_pct": pct}
	if err := b.callService(ctx, dev.EntityID, "turn_on", payload); err != nil {
		return failedResult(dev.Name), err
	}
	return CommandResult{Done: true, Message: fmt.Sprintf("Set %s to %d%% brightness.", dev.Name, pct)}, nil
}

// ControlArea applies an action to every controllable device whose area or
// name matches the query. action is "turn_on", "turn_off", or "toggle"; the
// optional brightness applies to lights on turn_on. All matched entities are
// controlled with a single batched service call in the hub's catch-all
// domain.
func (b *Bridge) ControlArea(ctx context.Context, area, action string, brightness *int) (CommandResult, error) {
	switch action {
	case "turn_on", "turn_off", "toggle":
	default:
		return CommandResult{Done: false, Message: fmt.Sprintf("I don't know how to %q an area.", action)}, nil
	}

	ids := b.areaTargets(area)
	if len(ids) == 0 {
		msg := fmt.Sprintf("I couldn't find any controllable devices in %q.", area)
		return CommandResult{Done: false, Message: msg}, nil
	}

	payload := map[string]any{"entity_id": ids}
	if action == "turn_on" && brightness != nil {
		payload["brightness_pct"] = clampPct(*brightness)
	}

	if err := b.transportCallService(ctx, "homeassistant", action, payload); err != nil {
		return CommandResult{Done: false, Message: "Sorry, the hub rejected that command."}, err
	}

	verb := strings.ReplaceAll(action, "_", " ")
	noun := "devices"
	if len(ids) == 1 {
		noun = "device"
	}
	msg := fmt.Sprintf("Okay, I sent %s to %d %s in %s.", verb, len(ids), noun, area)
	return CommandResult{Done: true, Message: msg}, nil
}

// areaTargets returns the entity ids of every light or switch whose area or
// display name matches the query case-insensitively. Sorted for stable
// batching.
func (b *Bridge) areaTargets(query string) []string {
	q := strings.ToLower(query)

	var ids []string
	for _, dev := range b.GetAllDevices() {
		if dev.Type != DeviceLight && dev.Type != DeviceSwitch {
			continue
		}
		if strings.Contains(strings.ToLower(dev.Area), q) || strings.Contains(strings.ToLower(dev.Name), q) {
			ids = append(ids, dev.EntityID)
		}
	}
	sort.Strings(ids)
	return ids
}

// callService issues a single-entity service call in the entity's own
// domain.
func (b *Bridge) callService(ctx context.Context, entityID, service string, payload map[string]any) error {
	domain, _, _ := strings.Cut(entityID, ".")
	return b.transportCallService(ctx, domain, service, payload)
}

// transportCallService routes a service invocation through the REST
// transport, guarding against use before configuration.
func (b *Bridge) transportCallService(ctx context.Context, domain, service string, payload map[string]any) error {
	t := b.currentTransport()
	if t == nil {
		return ErrNotConfigured
	}
	ctx, cancel := withTimeout(ctx)
	defer cancel()
	return t.CallService(ctx, domain, service, payload)
}

// clampPct constrains a brightness percentage to [0, 100]. Voice input is
// forgiving: "set it to 110" means full brightness, not an error.
func clampPct(pct int) int {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

func notFoundResult(query string) CommandResult {
	return CommandResult{Done: false, Message: fmt.Sprintf("Sorry, I couldn't find a device called %q.", query)}
}

func failedResult(name string) CommandResult {
	return CommandResult{Done: false, Message: fmt.Sprintf("Sorry, I couldn't reach %s.", name)}
}
