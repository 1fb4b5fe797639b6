package track

import (
	"math"
	"testing"

	"github.com/tether-systems/lidar2d-agent/internal/cluster"
	"github.com/tether-systems/lidar2d-agent/internal/roi"
)

func projected(u, v float64) roi.ProjectedPoint {
	return roi.ProjectedPoint{U: u, V: v, Inside: true, Cluster: cluster.Cluster{Size: 1}}
}

func defaultParams() Params {
	return Params{MaxMatchDistance: 0.3, TrackTimeout: 2, Alpha: 0.5, Beta: 0.3, MinMatchCount: 1}
}

func TestTrackerBirthsNewTrackOnFirstDetection(t *testing.T) {
	tr := NewTracker()
	out := tr.Step([]roi.ProjectedPoint{projected(0.5, 0.5)}, 1.0, defaultParams())

	if len(out) != 1 {
		t.Fatalf("expected 1 track, got %d", len(out))
	}
	if out[0].ID != 1 {
		t.Errorf("expected first track id 1, got %d", out[0].ID)
	}
}

func TestTrackerIDsAreMonotonicAndNeverReused(t *testing.T) {
	tr := NewTracker()
	params := defaultParams()

	tr.Step([]roi.ProjectedPoint{projected(0, 0)}, 1.0, params)
	tr.Step(nil, 1.0, params) // no detection, track ages toward timeout
	tr.Step(nil, 1.0, params) // unseen for 2 frames, not yet past TrackTimeout=2
	// Unseen for 3 frames, past TrackTimeout=2: track 1 dies on this step.
	out := tr.Step([]roi.ProjectedPoint{projected(5, 5)}, 1.0, params)

	if len(out) != 1 || out[0].ID != 2 {
		t.Fatalf("expected new track with id 2 (ids never reused), got %+v", out)
	}
}

func TestTrackerMatchesWithinGateAndSmooths(t *testing.T) {
	tr := NewTracker()
	params := defaultParams()

	tr.Step([]roi.ProjectedPoint{projected(0, 0)}, 1.0, params)
	out := tr.Step([]roi.ProjectedPoint{projected(0.1, 0)}, 1.0, params)

	if len(out) != 1 {
		t.Fatalf("expected 1 track (matched, not birthed), got %d", len(out))
	}
	want := 0.05 // (1-0.5)*0 + 0.5*0.1
	if math.Abs(out[0].Position.X-want) > 1e-9 {
		t.Errorf("expected smoothed position.X=%f, got %f", want, out[0].Position.X)
	}
}

func TestTrackerHardGateRejectsFarDetection(t *testing.T) {
	tr := NewTracker()
	params := defaultParams()

	tr.Step([]roi.ProjectedPoint{projected(0, 0)}, 1.0, params)
	out := tr.Step([]roi.ProjectedPoint{projected(10, 10)}, 1.0, params)

	if len(out) != 2 {
		t.Fatalf("expected the old track to stay alive unmatched alongside a new birth, got %d tracks", len(out))
	}
}

func TestTrackerWithholdsBelowMinMatchCount(t *testing.T) {
	tr := NewTracker()
	params := defaultParams()
	params.MinMatchCount = 2

	out := tr.Step([]roi.ProjectedPoint{projected(0, 0)}, 1.0, params)
	if len(out) != 0 {
		t.Fatalf("expected newly-birthed track to be withheld until min_match_count, got %d", len(out))
	}

	out = tr.Step([]roi.ProjectedPoint{projected(0.05, 0)}, 1.0, params)
	if len(out) != 1 {
		t.Fatalf("expected track to be emitted after 2nd match, got %d", len(out))
	}
}
