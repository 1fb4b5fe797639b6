// Package bus wraps paho.mqtt.golang with the topic conventions of
// §6: per-device scan subscriptions, config save/provide, auto-mask
// requests, and the tracked-point/cluster/diagnostics publications.
package bus

import (
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/tether-systems/lidar2d-agent/internal/apperrors"
	"github.com/tether-systems/lidar2d-agent/internal/logging"
)

// Config configures the MQTT connection (§6 --tether.* flags).
type Config struct {
	Host     string
	Username string
	Password string
}

// Client is a thin façade over an mqtt.Client that knows the agent's
// topic layout and reconnects with the paho client's own exponential
// backoff.
type Client struct {
	mqtt mqtt.Client
}

// topicPrefix builds the lidar2d/{serial}/{suffix} topic for a device,
// or lidar2d/{suffix} for device-agnostic topics when serial is "".
func topicPrefix(serial, suffix string) string {
	if serial == "" {
		return "lidar2d/" + suffix
	}
	return "lidar2d/" + serial + "/" + suffix
}

// Dial connects to the bus. Transient connection failures are wrapped
// as apperrors.TransientIOError; the caller logs and may retry.
func Dial(cfg Config) (*Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Host).
		SetClientID("lidar2d-agent-" + uuid.NewString()).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetMaxReconnectInterval(30 * time.Second).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			logging.Warn().Err(err).Msg("bus connection lost, reconnecting")
		})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return nil, apperrors.NewTransientIOError("bus.Dial", fmt.Errorf("connect timed out"))
	}
	if err := token.Error(); err != nil {
		return nil, apperrors.NewTransientIOError("bus.Dial", err)
	}
	return &Client{mqtt: client}, nil
}

// Close disconnects cleanly, waiting up to 250ms for in-flight publishes.
func (c *Client) Close() {
	c.mqtt.Disconnect(250)
}

// SubscribeScans subscribes to every device's scans topic, invoking
// handler with the extracted device serial and raw payload. A
// malformed topic (no serial segment) is dropped with a warning — it
// should be unreachable given the subscription filter.
func (c *Client) SubscribeScans(handler func(serial string, payload []byte)) error {
	return c.subscribe("lidar2d/+/scans", func(topic string, payload []byte) {
		serial, ok := extractSerial(topic, "scans")
		if !ok {
			logging.Warn().Str("topic", topic).Msg("could not extract device serial from scans topic")
			return
		}
		handler(serial, payload)
	})
}

// SubscribeSaveConfig subscribes to every device's saveLidarConfig
// topic (the config is device-agnostic, but the topic is mirrored
// per-serial per §6's {deviceSerial} prefix convention).
func (c *Client) SubscribeSaveConfig(handler func(payload []byte)) error {
	return c.subscribe("lidar2d/+/saveLidarConfig", func(_ string, payload []byte) {
		handler(payload)
	})
}

// SubscribeRequestAutoMask subscribes to requestAutoMask commands.
func (c *Client) SubscribeRequestAutoMask(handler func(payload []byte)) error {
	return c.subscribe("lidar2d/+/requestAutoMask", func(_ string, payload []byte) {
		handler(payload)
	})
}

func (c *Client) subscribe(filter string, handler func(topic string, payload []byte)) error {
	token := c.mqtt.Subscribe(filter, 1, func(_ mqtt.Client, msg mqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		return apperrors.NewTransientIOError("bus.Subscribe", err)
	}
	return nil
}

// PublishTrackedPoints publishes the raw projected centroids topic.
func (c *Client) PublishTrackedPoints(serial string, payload []byte) error {
	return c.publish(topicPrefix(serial, "trackedPoints"), payload, false)
}

// PublishSmoothedTrackedPoints publishes the smoothed tracks topic.
func (c *Client) PublishSmoothedTrackedPoints(serial string, payload []byte) error {
	return c.publish(topicPrefix(serial, "smoothedTrackedPoints"), payload, false)
}

// PublishClusters publishes the world-space clusters topic.
func (c *Client) PublishClusters(serial string, payload []byte) error {
	return c.publish(topicPrefix(serial, "clusters"), payload, false)
}

// PublishConfig publishes the current config snapshot, retained so
// late subscribers receive current state.
func (c *Client) PublishConfig(payload []byte) error {
	return c.publish(topicPrefix("", "provideLidarConfig"), payload, true)
}

// PublishMovement publishes the optional averaged-movement topic.
func (c *Client) PublishMovement(serial string, payload []byte) error {
	return c.publish(topicPrefix(serial, "movement"), payload, false)
}

// PublishDiagnostic publishes a structured error/diagnostic event —
// the new topic this agent adds for degenerate-geometry and other
// operator-facing conditions (§7).
func (c *Client) PublishDiagnostic(payload []byte) error {
	return c.publish(topicPrefix("", "diagnostics"), payload, false)
}

func (c *Client) publish(topic string, payload []byte, retained bool) error {
	token := c.mqtt.Publish(topic, 1, retained, payload)
	if !token.WaitTimeout(5 * time.Second) {
		return apperrors.NewTransientIOError("bus.Publish", fmt.Errorf("publish to %s timed out", topic))
	}
	if err := token.Error(); err != nil {
		return apperrors.NewTransientIOError("bus.Publish", err)
	}
	return nil
}

// extractSerial pulls the {deviceSerial} segment out of a
// lidar2d/{serial}/{suffix} topic.
func extractSerial(topic, suffix string) (string, bool) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "lidar2d" || parts[2] != suffix {
		return "", false
	}
	return parts[1], true
}
