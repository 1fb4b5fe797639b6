package main

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/tether-systems/lidar2d-agent/internal/apperrors"
	"github.com/tether-systems/lidar2d-agent/internal/bus"
	"github.com/tether-systems/lidar2d-agent/internal/codec"
	"github.com/tether-systems/lidar2d-agent/internal/device"
	"github.com/tether-systems/lidar2d-agent/internal/lidarconfig"
	"github.com/tether-systems/lidar2d-agent/internal/logging"
	"github.com/tether-systems/lidar2d-agent/internal/pipeline"
)

// wireSubscriptions subscribes to the three inbound topics of §6 and
// bridges each to the appropriate component: scans to the pipeline,
// saveLidarConfig to the config controller, requestAutoMask to the
// device registry. A decode or schema-validation failure on any topic
// is the Malformed-payload error class of §7: it is wrapped with the
// topic and a payload digest, logged at warn, reported as a bus
// diagnostic, and the message is dropped without aborting the
// subscription.
func wireSubscriptions(client *bus.Client, orch *pipeline.Orchestrator, registry *device.Registry, controller *lidarconfig.Controller) error {
	if err := client.SubscribeScans(func(serial string, payload []byte) {
		samples, err := codec.DecodeScan(payload)
		if err != nil {
			dropMalformed(orch, fmt.Sprintf("lidar2d/%s/scans", serial), payload, err)
			return
		}
		orch.SubmitScan(serial, samples)
	}); err != nil {
		return fmt.Errorf("subscribing to scans: %w", err)
	}

	if err := client.SubscribeSaveConfig(func(payload []byte) {
		cfg, err := lidarconfig.DecodeAndValidate(payload)
		if err != nil {
			dropMalformed(orch, "lidar2d/+/saveLidarConfig", payload, err)
			return
		}
		if err := controller.SaveConfig(cfg); err != nil {
			logging.Warn().Err(err).Msg("config update rejected")
			orch.ReportError(err)
			return
		}
		if snapshot, err := jsonConfigSnapshot(controller); err == nil {
			if err := client.PublishConfig(snapshot); err != nil {
				logging.Warn().Err(err).Msg("failed to publish updated config")
			}
		}
	}); err != nil {
		return fmt.Errorf("subscribing to saveLidarConfig: %w", err)
	}

	if err := client.SubscribeRequestAutoMask(func(payload []byte) {
		req, err := codec.DecodeAutoMaskRequest(payload)
		if err != nil {
			dropMalformed(orch, "lidar2d/+/requestAutoMask", payload, err)
			return
		}
		registry.StartAutoMask(req.Serial, req.Frames)
	}); err != nil {
		return fmt.Errorf("subscribing to requestAutoMask: %w", err)
	}

	return nil
}

// dropMalformed logs and reports a payload that failed decoding or
// schema validation on topic, per §7's Malformed-payload class: warn
// level, with the topic and a payload digest, and a best-effort
// diagnostic publication.
func dropMalformed(orch *pipeline.Orchestrator, topic string, payload []byte, cause error) {
	malformed := apperrors.NewMalformedPayloadError(topic, cause)
	logging.Warn().Err(malformed).Str("topic", topic).Str("digest", payloadDigest(payload)).Msg("malformed payload, dropping")
	orch.ReportError(malformed)
}

// payloadDigest returns a short hex digest of payload for log
// correlation, without logging the payload itself.
func payloadDigest(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:12]
}

// jsonConfigSnapshot marshals the controller's current config for the
// retained provideLidarConfig publication.
func jsonConfigSnapshot(controller *lidarconfig.Controller) ([]byte, error) {
	return json.Marshal(controller.Snapshot())
}
