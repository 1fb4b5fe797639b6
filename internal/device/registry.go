// Package device implements the device registry and auto-mask sampler
// of §4.2: per-serial pose/mask bookkeeping and the bucketed background
// sampling that produces a new mask on demand.
package device

import (
	"math"
	"sync"

	"github.com/tether-systems/lidar2d-agent/internal/lidarconfig"
)

// ChangeNotifier is a callback shape for receiving a changed Config.
// Nothing in this package invokes it: the pipeline orchestrator installs
// auto-registered devices and freshly-sampled masks by calling the
// config controller's SaveConfig directly.
type ChangeNotifier func(cfg *lidarconfig.Config)

// Registry tracks the in-flight auto-mask sessions of §4.2, one per
// serial. It holds no Config and mutates none: EnsureDevice returns a
// changed clone and ObserveFrame returns the emitted mask, and the
// caller installs either through the config controller so persistence
// and snapshot semantics stay centralised.
type Registry struct {
	mu      sync.Mutex
	samples map[string]*AutoMaskSampler
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{samples: make(map[string]*AutoMaskSampler)}
}

// EnsureDevice returns cfg unchanged if serial is already known;
// otherwise it clones cfg, inserts a default DeviceConfig for serial,
// and returns the clone along with true. Callers install the returned
// config via the controller when changed is true.
func EnsureDevice(cfg *lidarconfig.Config, serial string) (out *lidarconfig.Config, changed bool) {
	if _, ok := cfg.Devices[serial]; ok {
		return cfg, false
	}
	next := cfg.Clone()
	next.Devices[serial] = lidarconfig.DefaultDeviceConfig(serial)
	return next, true
}

// StartAutoMask begins an auto-mask sampling session for serial,
// collecting frameCount frames of angle-bucketed minimum distances.
// Any prior in-flight session for the same serial is discarded.
func (r *Registry) StartAutoMask(serial string, frameCount int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples[serial] = newAutoMaskSampler(serial, frameCount)
}

// ObserveFrame feeds one frame's raw polar samples (angle radians,
// distance metres) into any in-flight auto-mask session for serial. It
// returns the emitted mask and true once the session's frame budget is
// exhausted; the session is then retired.
func (r *Registry) ObserveFrame(serial string, samples []RawSample) ([]lidarconfig.MaskRange, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sampler, ok := r.samples[serial]
	if !ok {
		return nil, false
	}
	done := sampler.Observe(samples)
	if !done {
		return nil, false
	}
	delete(r.samples, serial)
	return sampler.Emit(), true
}

// RawSample is one (angle, distance) reading from a scan frame, prior
// to any mask filtering — the shape auto-masking samples against.
type RawSample struct {
	AngleRad float64
	Distance float64
}

// normalizeAngle folds angle into [0, 2π), per the mask-ranges-are-
// normalised-modulo-2π invariant.
func normalizeAngle(angle float64) float64 {
	const twoPi = 2 * math.Pi
	a := math.Mod(angle, twoPi)
	if a < 0 {
		a += twoPi
	}
	return a
}
