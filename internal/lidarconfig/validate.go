package lidarconfig

import (
	"fmt"
	"math"

	"github.com/tether-systems/lidar2d-agent/internal/apperrors"
	"github.com/tether-systems/lidar2d-agent/internal/geometry"
)

// Validate checks a Config against §4.7's acceptance rules: device poses
// are finite, ROI corners (if present) are non-degenerate, and cluster
// parameters are within sane bounds. Collinear or coincident ROI
// corners are reported as apperrors.DegenerateGeometryError, not as a
// plain validation failure. It does not solve the ROI homography; that
// is Controller's job, which reports a quad that passes this check but
// cannot be solved as the same error type.
func (cfg *Config) Validate() error {
	for serial, dc := range cfg.Devices {
		if dc.Serial != serial {
			return fmt.Errorf("device map key %q does not match DeviceConfig.Serial %q", serial, dc.Serial)
		}
		if !isFinite(dc.Pose.X) || !isFinite(dc.Pose.Y) || !isFinite(dc.Pose.Rotation) {
			return fmt.Errorf("device %q has non-finite pose", serial)
		}
		for i, m := range dc.Mask {
			if !isFinite(m.AngleFrom) || !isFinite(m.AngleTo) || !isFinite(m.DistanceMax) {
				return fmt.Errorf("device %q mask[%d] has non-finite field", serial, i)
			}
			if m.DistanceMax < 0 {
				return fmt.Errorf("device %q mask[%d] has negative distanceMax", serial, i)
			}
		}
	}

	if cfg.ROI != nil {
		if isDegenerateQuad(cfg.ROI.Corners) {
			return apperrors.NewDegenerateGeometryError("Validate.roi", fmt.Errorf("roi corners are degenerate (collinear or coincident)"))
		}
		if cfg.ROI.Margin < 0 {
			return fmt.Errorf("roi margin must be non-negative, got %f", cfg.ROI.Margin)
		}
	}

	if cfg.Cluster.Eps <= 0 {
		return fmt.Errorf("cluster.eps must be positive, got %f", cfg.Cluster.Eps)
	}
	if cfg.Cluster.MinPoints < 1 {
		return fmt.Errorf("cluster.minPoints must be >= 1, got %d", cfg.Cluster.MinPoints)
	}
	if cfg.Cluster.MaxClusterSize > 0 && cfg.Cluster.MaxClusterSize < cfg.Cluster.MinClusterSize {
		return fmt.Errorf("cluster.maxClusterSize (%d) must be >= minClusterSize (%d)",
			cfg.Cluster.MaxClusterSize, cfg.Cluster.MinClusterSize)
	}

	if cfg.Tracking.MaxMatchDistance <= 0 {
		return fmt.Errorf("tracking.maxMatchDistance must be positive, got %f", cfg.Tracking.MaxMatchDistance)
	}
	if cfg.Tracking.TrackTimeout < 1 {
		return fmt.Errorf("tracking.trackTimeout must be >= 1, got %d", cfg.Tracking.TrackTimeout)
	}
	if cfg.Tracking.Alpha <= 0 || cfg.Tracking.Alpha > 1 {
		return fmt.Errorf("tracking.alpha must be in (0, 1], got %f", cfg.Tracking.Alpha)
	}
	if cfg.Tracking.Beta <= 0 || cfg.Tracking.Beta > 1 {
		return fmt.Errorf("tracking.beta must be in (0, 1], got %f", cfg.Tracking.Beta)
	}
	if cfg.Tracking.MinMatchCount < 0 {
		return fmt.Errorf("tracking.minMatchCount must be non-negative, got %d", cfg.Tracking.MinMatchCount)
	}

	return nil
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// isDegenerateQuad reports whether the four corners are collinear (or
// coincident), which would make any homography solve rank-deficient.
// It checks consecutive-triple signed areas; a non-degenerate quad has
// at least one triple with a non-negligible area.
func isDegenerateQuad(q geometry.Quad) bool {
	const areaEps = 1e-9
	for i := 0; i < 4; i++ {
		a, b, c := q[i], q[(i+1)%4], q[(i+2)%4]
		area := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
		if math.Abs(area) > areaEps {
			return false
		}
	}
	return true
}
