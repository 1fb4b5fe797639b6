// Package lidarconfig holds the authoritative Config entity — devices,
// ROI, cluster/tracking parameters, and presence zones — along with its
// validation rules and the controller that owns it.
//
// Config is exclusively owned by Controller; every other pipeline stage
// reads an immutable *Config snapshot obtained via Controller.Snapshot,
// never mutates it, and never holds it across frames.
package lidarconfig

import "github.com/tether-systems/lidar2d-agent/internal/geometry"

// MaskRange excludes samples in [AngleFrom, AngleTo] (radians, inclusive
// at both ends, modulo 2π) whose distance exceeds DistanceMax — the static-background cutout
// learned by auto-masking or set explicitly.
type MaskRange struct {
	AngleFrom   float64 `json:"angleFrom"`
	AngleTo     float64 `json:"angleTo"`
	DistanceMax float64 `json:"distanceMax"`
}

// DeviceConfig is the per-sensor pose, mask, and cosmetic metadata.
type DeviceConfig struct {
	Serial string        `json:"serial"`
	Pose   geometry.Pose `json:"pose"`
	Mask   []MaskRange   `json:"mask"`
	Color  string        `json:"color,omitempty"`
	Name   string        `json:"name,omitempty"`
}

// DefaultDeviceConfig seeds a newly-seen serial with identity pose and
// no mask, per §4.2 ensure_device.
func DefaultDeviceConfig(serial string) DeviceConfig {
	return DeviceConfig{
		Serial: serial,
		Pose:   geometry.Pose{},
		Mask:   nil,
	}
}

// ROI is the user-defined quadrilateral (world-space, ordered
// TL/TR/BR/BL) projected onto the unit square, plus an outside-tolerance
// margin.
type ROI struct {
	Corners geometry.Quad `json:"corners"`
	Margin  float64       `json:"margin"`
}

// ClusterParams configures the DBSCAN engine (§4.4).
type ClusterParams struct {
	Eps            float64 `json:"eps"`
	MinPoints      int     `json:"minPoints"`
	MaxClusterSize int     `json:"maxClusterSize"`
	MinClusterSize int     `json:"minClusterSize"`
}

// TrackingParams configures the tracker/smoother (§4.6).
type TrackingParams struct {
	MaxMatchDistance float64 `json:"maxMatchDistance"`
	TrackTimeout     int     `json:"trackTimeout"`
	Alpha            float64 `json:"alpha"`
	Beta             float64 `json:"beta"`
	MinMatchCount    int     `json:"minMatchCount"`
}

// PresenceZone is an opaque, ordered config element: a rectangle plus an
// identifier. Its consumption semantics are an open question in the
// source spec (§9) — this implementation carries it through config
// load/validate/persist as a hook, with no pipeline stage consuming it
// yet.
type PresenceZone struct {
	Rect geometry.Quad `json:"rect"`
	ID   string        `json:"id"`
}

// Config is the authoritative, immutable-once-published snapshot of all
// device, ROI, and tuning state.
type Config struct {
	Devices       map[string]DeviceConfig `json:"devices"`
	ROI           *ROI                    `json:"roi,omitempty"`
	Cluster       ClusterParams           `json:"cluster"`
	Tracking      TrackingParams          `json:"tracking"`
	PresenceZones []PresenceZone          `json:"presenceZones,omitempty"`
}

// Clone returns a deep copy of cfg so callers can mutate a working copy
// before calling Controller.SaveConfig without racing readers of the
// live snapshot.
func (cfg *Config) Clone() *Config {
	out := &Config{
		Devices:       make(map[string]DeviceConfig, len(cfg.Devices)),
		Cluster:       cfg.Cluster,
		Tracking:      cfg.Tracking,
		PresenceZones: append([]PresenceZone(nil), cfg.PresenceZones...),
	}
	for serial, dc := range cfg.Devices {
		dcCopy := dc
		dcCopy.Mask = append([]MaskRange(nil), dc.Mask...)
		out.Devices[serial] = dcCopy
	}
	if cfg.ROI != nil {
		roiCopy := *cfg.ROI
		out.ROI = &roiCopy
	}
	return out
}

// DefaultClusterParams mirrors the CLI flag defaults in §6.
func DefaultClusterParams() ClusterParams {
	return ClusterParams{
		Eps:            0.3,
		MinPoints:      3,
		MaxClusterSize: 200,
		MinClusterSize: 1,
	}
}

// DefaultTrackingParams mirrors the CLI flag defaults in §6.
func DefaultTrackingParams() TrackingParams {
	return TrackingParams{
		MaxMatchDistance: 0.3,
		TrackTimeout:     10,
		Alpha:            0.5,
		Beta:             0.3,
		MinMatchCount:    2,
	}
}

// DefaultConfig returns a fresh Config with no devices or ROI and
// spec-default cluster/tracking parameters.
func DefaultConfig() *Config {
	return &Config{
		Devices:  make(map[string]DeviceConfig),
		ROI:      nil,
		Cluster:  DefaultClusterParams(),
		Tracking: DefaultTrackingParams(),
	}
}
