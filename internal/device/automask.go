package device

import (
	"math"

	"github.com/tether-systems/lidar2d-agent/internal/lidarconfig"
)

const autoMaskBucketWidthRad = (1.0 / 180.0) * math.Pi // 1° buckets, per §4.2
const autoMaskBucketCount = 360
const autoMaskInsetMeters = 0.0 // no inset by default; thresholds equal observed minimums

// AutoMaskSampler accumulates, across frameCount frames, the minimum
// observed distance per 1°-wide angle bucket for one device serial. On
// completion it emits a MaskRange per non-empty bucket whose threshold
// is the collected minimum distance, excluding anything beyond that
// background surface (a sample exactly at the threshold is kept).
type AutoMaskSampler struct {
	serial         string
	framesRemaining int
	minDistance    [autoMaskBucketCount]float64
	seen           [autoMaskBucketCount]bool
}

func newAutoMaskSampler(serial string, frameCount int) *AutoMaskSampler {
	s := &AutoMaskSampler{serial: serial, framesRemaining: frameCount}
	for i := range s.minDistance {
		s.minDistance[i] = math.Inf(1)
	}
	return s
}

// Observe folds one frame's samples into the per-bucket running
// minimum and decrements the remaining-frame budget. It returns true
// once frameCount frames have been observed.
func (s *AutoMaskSampler) Observe(samples []RawSample) bool {
	for _, sample := range samples {
		if sample.Distance <= 0 {
			continue
		}
		bucket := bucketIndex(sample.AngleRad)
		if sample.Distance < s.minDistance[bucket] {
			s.minDistance[bucket] = sample.Distance
		}
		s.seen[bucket] = true
	}
	s.framesRemaining--
	return s.framesRemaining <= 0
}

// Emit produces one MaskRange per bucket that received at least one
// sample, each spanning exactly that bucket's angle width.
func (s *AutoMaskSampler) Emit() []lidarconfig.MaskRange {
	ranges := make([]lidarconfig.MaskRange, 0, autoMaskBucketCount)
	for i := 0; i < autoMaskBucketCount; i++ {
		if !s.seen[i] {
			continue
		}
		threshold := s.minDistance[i] - autoMaskInsetMeters
		if threshold < 0 {
			threshold = 0
		}
		ranges = append(ranges, lidarconfig.MaskRange{
			AngleFrom:   float64(i) * autoMaskBucketWidthRad,
			AngleTo:     float64(i+1) * autoMaskBucketWidthRad,
			DistanceMax: threshold,
		})
	}
	return ranges
}

func bucketIndex(angleRad float64) int {
	a := normalizeAngle(angleRad)
	idx := int(a / autoMaskBucketWidthRad)
	if idx >= autoMaskBucketCount {
		idx = autoMaskBucketCount - 1
	}
	return idx
}
