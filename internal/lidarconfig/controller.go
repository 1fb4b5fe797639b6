package lidarconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/tether-systems/lidar2d-agent/internal/apperrors"
	"github.com/tether-systems/lidar2d-agent/internal/geometry"
	"github.com/tether-systems/lidar2d-agent/internal/logging"
)

// Controller owns the single authoritative Config. Readers obtain an
// immutable snapshot via Snapshot; writers go exclusively through
// SaveConfig, which validates, recomputes the ROI homography, swaps the
// snapshot atomically, and schedules a coalesced disk write.
//
// Controller is the only component allowed to mutate its internal
// state; everything downstream treats a *Config as read-only.
type Controller struct {
	path string

	current atomic.Pointer[Config]
	homog   atomic.Pointer[geometry.Homography]

	pending atomic.Pointer[Config]
	wake    chan struct{}
}

// NewController constructs a Controller seeded with cfg (already
// validated by the caller, typically via LoadConfig) and persisting to
// path on every SaveConfig.
func NewController(path string, cfg *Config) *Controller {
	c := &Controller{
		path: path,
		wake: make(chan struct{}, 1),
	}
	c.current.Store(cfg)
	c.recomputeHomography(cfg)
	return c
}

// Snapshot returns the current, immutable Config. Callers must not
// mutate the returned value; Clone it first if a working copy is
// needed.
func (c *Controller) Snapshot() *Config {
	return c.current.Load()
}

// Homography returns the cached ROI homography, or nil if no ROI is
// configured. It is recomputed only when SaveConfig installs a new ROI,
// not on every frame.
func (c *Controller) Homography() *geometry.Homography {
	return c.homog.Load()
}

// SaveConfig validates cfg, recomputes the ROI homography if an ROI is
// present, atomically installs cfg as the new snapshot, and schedules an
// async coalesced disk write. A degenerate ROI is rejected with
// apperrors.DegenerateGeometryError and the prior snapshot is left in
// place, per §7.
func (c *Controller) SaveConfig(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config rejected: %w", err)
	}

	var h *geometry.Homography
	if cfg.ROI != nil {
		solved, err := geometry.SolveQuadHomography(cfg.ROI.Corners, geometry.UnitSquare)
		if err != nil {
			return apperrors.NewDegenerateGeometryError("SaveConfig.homography", err)
		}
		h = &solved
	}

	c.current.Store(cfg)
	c.homog.Store(h)
	c.schedulePersist(cfg)
	return nil
}

func (c *Controller) recomputeHomography(cfg *Config) {
	if cfg.ROI == nil {
		c.homog.Store(nil)
		return
	}
	h, err := geometry.SolveQuadHomography(cfg.ROI.Corners, geometry.UnitSquare)
	if err != nil {
		logging.Warn().Err(err).Msg("startup ROI is degenerate; projection disabled until a valid ROI is saved")
		c.homog.Store(nil)
		return
	}
	c.homog.Store(&h)
}

// schedulePersist records cfg as the latest pending write and wakes the
// persistence goroutine, coalescing bursts of SaveConfig calls into a
// single disk write of the most recent state.
func (c *Controller) schedulePersist(cfg *Config) {
	c.pending.Store(cfg)
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// RunPersistence is the single background writer: it blocks on wake and
// flushes whatever the most recently pending Config is, until ctx is
// cancelled; on cancellation it first flushes a pending Config that has
// not been written yet. Only one instance should run per Controller.
func (c *Controller) RunPersistence(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			select {
			case <-c.wake:
				if cfg := c.pending.Load(); cfg != nil {
					if err := c.flush(cfg); err != nil {
						logging.Error().Err(err).Str("path", c.path).Msg("failed to persist config on shutdown")
					}
				}
			default:
			}
			return
		case <-c.wake:
			cfg := c.pending.Load()
			if cfg == nil {
				continue
			}
			if err := c.flush(cfg); err != nil {
				if apperrors.IsPersistence(err) {
					logging.Error().Err(err).Str("path", c.path).Msg("failed to persist config; in-memory config remains authoritative")
				} else {
					logging.Error().Err(err).Str("path", c.path).Msg("unexpected error persisting config")
				}
			}
		}
	}
}

// flush writes cfg to c.path atomically: marshal, write to a sibling
// temp file, then rename over the target. A crash or power loss during
// the write leaves the previous file intact rather than a half-written
// one, since rename is atomic on the same filesystem.
func (c *Controller) flush(cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return apperrors.NewPersistenceError("flush.marshal", err)
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, ".lidar2d-config-*.tmp")
	if err != nil {
		return apperrors.NewPersistenceError("flush.createTemp", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperrors.NewPersistenceError("flush.write", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return apperrors.NewPersistenceError("flush.sync", err)
	}
	if err := tmp.Close(); err != nil {
		return apperrors.NewPersistenceError("flush.close", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		return apperrors.NewPersistenceError("flush.rename", err)
	}
	return nil
}

// LoadConfig reads path and returns its Config, or DefaultConfig if the
// file does not exist. A malformed or invalid file is a fatal startup
// error (§7): an agent must not start serving a corrupt configuration.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return DefaultConfig(), nil
	}
	if err != nil {
		return nil, apperrors.NewPersistenceError("LoadConfig.read", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if cfg.Devices == nil {
		cfg.Devices = make(map[string]DeviceConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s failed validation: %w", path, err)
	}
	return &cfg, nil
}
