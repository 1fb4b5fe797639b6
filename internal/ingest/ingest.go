// Package ingest implements §4.3: converting one device's raw polar
// scan frame into a mask-filtered, world-space DevicePointBuffer.
package ingest

import (
	"math"
	"time"

	"github.com/tether-systems/lidar2d-agent/internal/geometry"
	"github.com/tether-systems/lidar2d-agent/internal/lidarconfig"
)

// Sample is one raw polar reading. Quality is optional; a nil value
// means "not present" and the sample is never rejected on quality
// grounds, matching §4.2's "quality, if present, is currently ignored"
// for masking (only distance<=0 or quality==0 drop at ingest).
type Sample struct {
	AngleRad float64
	Distance float64
	Quality  *uint8
}

// DevicePointBuffer holds one device's most recent world-space points.
type DevicePointBuffer struct {
	Serial    string
	Points    []geometry.Point
	UpdatedAt time.Time
}

// Ingest filters samples whose distance is non-positive or whose
// quality (if present) is zero, applies the device's mask, converts
// surviving polar samples to cartesian, and applies the device pose.
// It is pure over dc — the same frame and config always yield
// bit-identical output (§8 invariant: ingest purity).
func Ingest(serial string, samples []Sample, dc lidarconfig.DeviceConfig, now time.Time) DevicePointBuffer {
	points := make([]geometry.Point, 0, len(samples))
	for _, s := range samples {
		if s.Distance <= 0 {
			continue
		}
		if s.Quality != nil && *s.Quality == 0 {
			continue
		}
		if !applyMask(dc.Mask, s.AngleRad, s.Distance) {
			continue
		}
		local := geometry.PolarToCartesian(s.AngleRad, s.Distance)
		points = append(points, geometry.ApplyPose(local, dc.Pose))
	}
	return DevicePointBuffer{Serial: serial, Points: points, UpdatedAt: now}
}

// applyMask reports whether a sample at the given angle/distance
// survives the device's mask: it is rejected iff some mask entry's
// angular range (inclusive, modulo 2π) covers angle and the sample's
// distance exceeds that entry's DistanceMax.
func applyMask(mask []lidarconfig.MaskRange, angleRad, distance float64) bool {
	theta := normalizeAngle(angleRad)
	for _, m := range mask {
		from := normalizeAngle(m.AngleFrom)
		to := normalizeMaskAngleTo(m.AngleTo)
		if angleInRange(theta, from, to) && distance > m.DistanceMax {
			return false
		}
	}
	return true
}

// normalizeMaskAngleTo normalizes a mask's upper angle bound like
// normalizeAngle, except a positive multiple of 2π is kept as 2π rather
// than wrapped down to 0. Without this, a full-circle mask
// (AngleFrom=0, AngleTo=2π) would collapse to the single angle 0 —
// since theta is always normalized into [0, 2π), "to=2π" still covers
// every possible theta, while "to=0" covers only theta==0.
func normalizeMaskAngleTo(angle float64) float64 {
	const twoPi = 2 * math.Pi
	if angle <= 0 {
		return normalizeAngle(angle)
	}
	mod := math.Mod(angle, twoPi)
	if mod < 1e-9 || twoPi-mod < 1e-9 {
		return twoPi
	}
	return mod
}

// angleInRange reports whether theta lies in [from, to] modulo 2π,
// inclusive at both ends, correctly handling ranges that wrap past 2π.
func angleInRange(theta, from, to float64) bool {
	if from <= to {
		return theta >= from && theta <= to
	}
	// Wrapped range, e.g. from=5.5, to=0.5 covers [5.5, 2π) U [0, 0.5].
	return theta >= from || theta <= to
}

func normalizeAngle(angle float64) float64 {
	const twoPi = 2 * math.Pi
	a := math.Mod(angle, twoPi)
	if a < 0 {
		a += twoPi
	}
	return a
}
