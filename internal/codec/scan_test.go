package codec

import (
	"testing"

	"github.com/tether-systems/lidar2d-agent/internal/ingest"
)

func TestEncodeDecodeScanRoundTrip(t *testing.T) {
	q := uint8(5)
	samples := []ingest.Sample{
		{AngleRad: 0.1, Distance: 1.2},
		{AngleRad: 0.2, Distance: 3.4, Quality: &q},
	}

	payload, err := EncodeScan(samples)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := DecodeScan(payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 samples, got %d", len(got))
	}
	if got[0].Quality != nil {
		t.Error("expected 2-tuple sample to have nil quality")
	}
	if got[1].Quality == nil || *got[1].Quality != 5 {
		t.Errorf("expected quality=5, got %+v", got[1].Quality)
	}
}

func TestDecodeScanRejectsShortTuple(t *testing.T) {
	payload, _ := EncodeScanRaw([][]float64{{1.0}})
	if _, err := DecodeScan(payload); err == nil {
		t.Fatal("expected error for malformed 1-element tuple")
	}
}
