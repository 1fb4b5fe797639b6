// Package codec implements wire (de)serialization for bus payloads:
// MessagePack for scan frames, JSON for config payloads.
package codec

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/tether-systems/lidar2d-agent/internal/ingest"
)

// wireSample mirrors the 2- or 3-tuple (angle_rad, distance_m[, quality])
// wire shape of §6's scans topic payload.
type wireSample [3]float64

// DecodeScan unmarshals a MessagePack-encoded ordered sequence of
// samples into ingest.Sample values. A 2-tuple sample has no quality
// field; a 3-tuple's third element is truncated to uint8.
func DecodeScan(payload []byte) ([]ingest.Sample, error) {
	var raw [][]float64
	if err := msgpack.Unmarshal(payload, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode scan payload: %w", err)
	}

	samples := make([]ingest.Sample, 0, len(raw))
	for i, tuple := range raw {
		if len(tuple) < 2 {
			return nil, fmt.Errorf("sample %d has %d elements, want 2 or 3", i, len(tuple))
		}
		s := ingest.Sample{AngleRad: tuple[0], Distance: tuple[1]}
		if len(tuple) >= 3 {
			q := uint8(tuple[2])
			s.Quality = &q
		}
		samples = append(samples, s)
	}
	return samples, nil
}

// EncodeScan is the inverse of DecodeScan, used by tests and by replay
// tooling that needs to produce a conforming payload.
func EncodeScan(samples []ingest.Sample) ([]byte, error) {
	raw := make([][]float64, len(samples))
	for i, s := range samples {
		if s.Quality != nil {
			raw[i] = []float64{s.AngleRad, s.Distance, float64(*s.Quality)}
		} else {
			raw[i] = []float64{s.AngleRad, s.Distance}
		}
	}
	return msgpack.Marshal(raw)
}

// EncodeScanRaw marshals a raw tuple slice directly, bypassing the
// ingest.Sample shape — used by tests to construct malformed payloads.
func EncodeScanRaw(raw [][]float64) ([]byte, error) {
	return msgpack.Marshal(raw)
}
