package codec

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tether-systems/lidar2d-agent/internal/cluster"
	"github.com/tether-systems/lidar2d-agent/internal/roi"
	"github.com/tether-systems/lidar2d-agent/internal/track"
)

// TrackedPoint is one entry of the .../trackedPoints payload: a raw
// projected centroid, unsmoothed.
type TrackedPoint [2]float64

// SmoothedTrack is one entry of the .../smoothedTrackedPoints payload.
type SmoothedTrack struct {
	ID       uint64     `json:"id"`
	X        float64    `json:"x"`
	Y        float64    `json:"y"`
	Velocity [2]float64 `json:"velocity"`
}

// WorldCluster is one entry of the .../clusters payload.
type WorldCluster struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Size int     `json:"size"`
}

// EncodeTrackedPoints renders projected points as the ordered [u,v]
// pairs the .../trackedPoints topic publishes.
func EncodeTrackedPoints(points []roi.ProjectedPoint) ([]byte, error) {
	out := make([]TrackedPoint, len(points))
	for i, p := range points {
		out[i] = TrackedPoint{p.U, p.V}
	}
	return json.Marshal(out)
}

// EncodeSmoothedTracks renders tracker output as the
// .../smoothedTrackedPoints payload shape.
func EncodeSmoothedTracks(tracks []track.Track) ([]byte, error) {
	out := make([]SmoothedTrack, len(tracks))
	for i, t := range tracks {
		out[i] = SmoothedTrack{
			ID:       t.ID,
			X:        t.Position.X,
			Y:        t.Position.Y,
			Velocity: [2]float64{t.Velocity.X, t.Velocity.Y},
		}
	}
	return json.Marshal(out)
}

// EncodeClusters renders world-space clusters as the .../clusters
// payload shape.
func EncodeClusters(clusters []cluster.Cluster) ([]byte, error) {
	out := make([]WorldCluster, len(clusters))
	for i, c := range clusters {
		out[i] = WorldCluster{X: c.Centroid.X, Y: c.Centroid.Y, Size: c.Size}
	}
	return json.Marshal(out)
}

// EncodeMovement renders the single averaged [dx,dy] movement vector
// published on .../movement when --enableAverageMovement is set.
func EncodeMovement(dx, dy float64) ([]byte, error) {
	return json.Marshal([2]float64{dx, dy})
}

// JSONEncoder implements pipeline.Encoder by delegating to the
// package-level Encode* functions — the orchestrator depends on the
// interface, not this concrete type, so it can be exercised with a
// test double.
type JSONEncoder struct{}

func (JSONEncoder) EncodeTrackedPoints(points []roi.ProjectedPoint) ([]byte, error) {
	return EncodeTrackedPoints(points)
}

func (JSONEncoder) EncodeSmoothedTracks(tracks []track.Track) ([]byte, error) {
	return EncodeSmoothedTracks(tracks)
}

func (JSONEncoder) EncodeClusters(clusters []cluster.Cluster) ([]byte, error) {
	return EncodeClusters(clusters)
}

func (JSONEncoder) EncodeMovement(dx, dy float64) ([]byte, error) {
	return EncodeMovement(dx, dy)
}

// AutoMaskRequest is the .../requestAutoMask inbound payload.
type AutoMaskRequest struct {
	Serial string `json:"serial" msgpack:"serial"`
	Frames int    `json:"frames" msgpack:"frames"`
}

// DecodeAutoMaskRequest parses a MessagePack-encoded .../requestAutoMask
// payload.
func DecodeAutoMaskRequest(payload []byte) (AutoMaskRequest, error) {
	var req AutoMaskRequest
	err := msgpack.Unmarshal(payload, &req)
	return req, err
}
