// Package track implements §4.6: greedy nearest-neighbor matching
// between predicted track positions and the current frame's projected
// points, with exponential position/velocity smoothing and
// birth/death lifecycle management.
//
// This deliberately uses greedy assignment rather than an optimal
// (Hungarian) matcher, and exponential smoothing rather than a Kalman
// filter — simpler, cheaper, and sufficient at the target detection
// counts, per the tracking model this agent implements.
package track

import (
	"sort"

	"github.com/tether-systems/lidar2d-agent/internal/geometry"
	"github.com/tether-systems/lidar2d-agent/internal/roi"
)

// Track is one tracked object's smoothed state.
type Track struct {
	ID            uint64
	Position      geometry.Point
	Velocity      geometry.Point
	MatchCount    int
	LastSeenFrame uint64
}

// Params configures matching, smoothing, and lifecycle (§4.6, §6).
type Params struct {
	MaxMatchDistance float64
	TrackTimeout      int // frames
	Alpha             float64
	Beta              float64
	MinMatchCount     int
}

// Tracker owns the live track set. It is not safe for concurrent use;
// the pipeline orchestrator serialises access per frame.
type Tracker struct {
	tracks  map[uint64]*Track
	nextID  uint64
	frame   uint64
}

// NewTracker constructs an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{tracks: make(map[uint64]*Track)}
}

// candidate pairs a track with a detection and their squared distance,
// used to drive greedy ascending-distance assignment.
type candidate struct {
	trackID  uint64
	detIdx   int
	distance2 float64
}

// Step advances the tracker by one frame: it predicts each track's
// position dt seconds forward, greedily matches tracks to detections
// under the hard gate MaxMatchDistance, updates matched tracks via
// exponential smoothing, births unmatched detections as new tracks,
// and retires tracks that have exceeded TrackTimeout frames without a
// match. It returns only the smoothed tracks eligible for emission
// (MatchCount >= MinMatchCount), sorted by ID; the raw detections are
// not returned, since the caller already holds them.
func (tr *Tracker) Step(detections []roi.ProjectedPoint, dt float64, params Params) []Track {
	tr.frame++

	predicted := make(map[uint64]geometry.Point, len(tr.tracks))
	for id, t := range tr.tracks {
		predicted[id] = geometry.Point{
			X: t.Position.X + t.Velocity.X*dt,
			Y: t.Position.Y + t.Velocity.Y*dt,
		}
	}

	candidates := make([]candidate, 0, len(tr.tracks)*len(detections))
	for id, p := range predicted {
		for i, d := range detections {
			dp := geometry.Point{X: d.U, Y: d.V}
			dist2 := squaredDistance(p, dp)
			if dist2 <= params.MaxMatchDistance*params.MaxMatchDistance {
				candidates = append(candidates, candidate{trackID: id, detIdx: i, distance2: dist2})
			}
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].distance2 < candidates[j].distance2 })

	matchedTrack := make(map[uint64]bool, len(tr.tracks))
	matchedDet := make(map[int]bool, len(detections))
	for _, c := range candidates {
		if matchedTrack[c.trackID] || matchedDet[c.detIdx] {
			continue
		}
		matchedTrack[c.trackID] = true
		matchedDet[c.detIdx] = true

		t := tr.tracks[c.trackID]
		det := geometry.Point{X: detections[c.detIdx].U, Y: detections[c.detIdx].V}
		prior := t.Position

		t.Position = geometry.Point{
			X: (1-params.Alpha)*t.Position.X + params.Alpha*det.X,
			Y: (1-params.Alpha)*t.Position.Y + params.Alpha*det.Y,
		}
		if dt > 0 {
			instVelX := (det.X - prior.X) / dt
			instVelY := (det.Y - prior.Y) / dt
			t.Velocity = geometry.Point{
				X: (1-params.Beta)*t.Velocity.X + params.Beta*instVelX,
				Y: (1-params.Beta)*t.Velocity.Y + params.Beta*instVelY,
			}
		}
		t.MatchCount++
		t.LastSeenFrame = tr.frame
	}

	for i, d := range detections {
		if matchedDet[i] {
			continue
		}
		tr.nextID++
		tr.tracks[tr.nextID] = &Track{
			ID:            tr.nextID,
			Position:      geometry.Point{X: d.U, Y: d.V},
			Velocity:      geometry.Point{},
			MatchCount:    1,
			LastSeenFrame: tr.frame,
		}
	}

	for id, t := range tr.tracks {
		if tr.frame-t.LastSeenFrame > uint64(params.TrackTimeout) {
			delete(tr.tracks, id)
		}
	}

	emitted := make([]Track, 0, len(tr.tracks))
	for _, t := range tr.tracks {
		if t.MatchCount < params.MinMatchCount {
			continue
		}
		emitted = append(emitted, *t)
	}
	sort.Slice(emitted, func(i, j int) bool { return emitted[i].ID < emitted[j].ID })
	return emitted
}

func squaredDistance(a, b geometry.Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}
