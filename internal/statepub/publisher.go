package statepub

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hearthvoice/hearth-core/internal/bridges/hass"
	"github.com/hearthvoice/hearth-core/internal/infrastructure/mqtt"
)

// commandTimeout bounds a single MQTT-initiated device command.
const commandTimeout = 15 * time.Second

// Broker is the MQTT surface the publisher depends on.
type Broker interface {
	PublishRetained(topic string, payload []byte) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
}

// DeviceBridge is the hub bridge surface the publisher depends on.
type DeviceBridge interface {
	OnStateChange(fn hass.StateListener) func()
	ConnectionStatus() hass.ConnectionState
	TurnOn(ctx context.Context, query string, opts hass.TurnOnOptions) (hass.CommandResult, error)
	TurnOff(ctx context.Context, query string) (hass.CommandResult, error)
	Toggle(ctx context.Context, query string) (hass.CommandResult, error)
	SetBrightness(ctx context.Context, query string, pct int) (hass.CommandResult, error)
}

// Logger is the minimal logging interface the publisher depends on.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// commandPayload is the body of a device command message.
type commandPayload struct {
	Action     string `json:"action"`
	Brightness *int   `json:"brightness,omitempty"`
}

// Publisher mirrors bridge state onto MQTT and feeds MQTT commands back
// into the bridge.
type Publisher struct {
	broker Broker
	bridge DeviceBridge
	topics mqtt.Topics
	logger Logger

	unsubscribe func()
}

// New creates a publisher. Call Start to begin mirroring.
func New(broker Broker, bridge DeviceBridge, logger Logger) *Publisher {
	return &Publisher{
		broker: broker,
		bridge: bridge,
		logger: logger,
	}
}

// Start registers the bridge state listener and subscribes to device
// command topics.
func (p *Publisher) Start() error {
	if err := p.broker.Subscribe(p.topics.AllDeviceCommands(), 1, p.handleCommand); err != nil {
		return fmt.Errorf("subscribing to device commands: %w", err)
	}

	p.unsubscribe = p.bridge.OnStateChange(p.publishDevice)
	p.publishHubStatus()

	p.logger.Info("state publisher started")
	return nil
}

// Stop detaches from the bridge and the broker. Safe to call repeatedly.
func (p *Publisher) Stop() {
	if p.unsubscribe != nil {
		p.unsubscribe()
		p.unsubscribe = nil
	}
	if err := p.broker.Unsubscribe(p.topics.AllDeviceCommands()); err != nil {
		p.logger.Warn("unsubscribing from device commands", "error", err)
	}
}

// publishDevice mirrors one device snapshot as a retained state message.
func (p *Publisher) publishDevice(dev hass.Device) {
	payload, err := json.Marshal(dev)
	if err != nil {
		p.logger.Error("encoding device state", "entity_id", dev.EntityID, "error", err)
		return
	}

	topic := p.topics.DeviceState(dev.EntityID)
	if err := p.broker.PublishRetained(topic, payload); err != nil {
		p.logger.Warn("publishing device state", "topic", topic, "error", err)
	}
}

// publishHubStatus mirrors the current hub connection state. Called on
// Start and intended to be re-invoked by the composition root whenever the
// connection state is observed to change.
func (p *Publisher) publishHubStatus() {
	payload, err := json.Marshal(map[string]string{
		"state": string(p.bridge.ConnectionStatus()),
	})
	if err != nil {
		return
	}
	if err := p.broker.PublishRetained(p.topics.HubStatus(), payload); err != nil {
		p.logger.Warn("publishing hub status", "error", err)
	}
}

// PublishHubStatus publishes the bridge's current connection state.
func (p *Publisher) PublishHubStatus() {
	p.publishHubStatus()
}

// handleCommand translates a device command message into a bridge command.
// Topic shape: hearth/device/{entity_id}/command.
func (p *Publisher) handleCommand(topic string, payload []byte) error {
	entityID, ok := commandTarget(topic)
	if !ok {
		return fmt.Errorf("unexpected command topic %q", topic)
	}

	var cmd commandPayload
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return fmt.Errorf("decoding command for %s: %w", entityID, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var (
		res hass.CommandResult
		err error
	)
	switch cmd.Action {
	case "turn_on":
		res, err = p.bridge.TurnOn(ctx, entityID, hass.TurnOnOptions{Brightness: cmd.Brightness})
	case "turn_off":
		res, err = p.bridge.TurnOff(ctx, entityID)
	case "toggle":
		res, err = p.bridge.Toggle(ctx, entityID)
	case "set_brightness":
		if cmd.Brightness == nil {
			return fmt.Errorf("set_brightness for %s missing brightness", entityID)
		}
		res, err = p.bridge.SetBrightness(ctx, entityID, *cmd.Brightness)
	default:
		return fmt.Errorf("unknown action %q for %s", cmd.Action, entityID)
	}

	if err != nil {
		return fmt.Errorf("dispatching %s to %s: %w", cmd.Action, entityID, err)
	}
	if !res.Done {
		p.logger.Warn("command declined", "entity_id", entityID, "action", cmd.Action, "message", res.Message)
	}
	return nil
}

// commandTarget extracts the entity id from a device command topic.
func commandTarget(topic string) (string, bool) {
	rest, ok := strings.CutPrefix(topic, mqtt.TopicPrefixDevice+"/")
	if !ok {
		return "", false
	}
	entityID, ok := strings.CutSuffix(rest, "/command")
	if !ok || entityID == "" || strings.Contains(entityID, "/") {
		return "", false
	}
	return entityID, true
}
