package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/tether-systems/lidar2d-agent/internal/cluster"
	"github.com/tether-systems/lidar2d-agent/internal/geometry"
	"github.com/tether-systems/lidar2d-agent/internal/ingest"
	"github.com/tether-systems/lidar2d-agent/internal/lidarconfig"
	"github.com/tether-systems/lidar2d-agent/internal/roi"
	"github.com/tether-systems/lidar2d-agent/internal/track"
)

type fakePublisher struct {
	clusterPayloads  [][]byte
	trackedPayloads  [][]byte
	smoothedPayloads [][]byte
}

func (f *fakePublisher) PublishTrackedPoints(_ string, payload []byte) error {
	f.trackedPayloads = append(f.trackedPayloads, payload)
	return nil
}
func (f *fakePublisher) PublishSmoothedTrackedPoints(_ string, payload []byte) error {
	f.smoothedPayloads = append(f.smoothedPayloads, payload)
	return nil
}
func (f *fakePublisher) PublishClusters(_ string, payload []byte) error {
	f.clusterPayloads = append(f.clusterPayloads, payload)
	return nil
}
func (f *fakePublisher) PublishMovement(_ string, _ []byte) error { return nil }
func (f *fakePublisher) PublishDiagnostic(_ []byte) error         { return nil }

type fakeEncoder struct{}

func (fakeEncoder) EncodeTrackedPoints(points []roi.ProjectedPoint) ([]byte, error) {
	return []byte{byte(len(points))}, nil
}
func (fakeEncoder) EncodeSmoothedTracks(tracks []track.Track) ([]byte, error) {
	return []byte{byte(len(tracks))}, nil
}
func (fakeEncoder) EncodeClusters(clusters []cluster.Cluster) ([]byte, error) {
	return []byte{byte(len(clusters))}, nil
}
func (fakeEncoder) EncodeMovement(dx, dy float64) ([]byte, error) {
	return []byte{byte(int(dx)), byte(int(dy))}, nil
}

func TestOrchestratorProcessesScanS1(t *testing.T) {
	cfg := lidarconfig.DefaultConfig()
	cfg.Cluster.MinPoints = 1
	controller := lidarconfig.NewController(filepath.Join(t.TempDir(), "config.json"), cfg)

	pub := &fakePublisher{}
	orch := New(controller, pub, fakeEncoder{}, 33*time.Millisecond, false, false)

	orch.processScan("A", scanMsg{
		samples: []ingest.Sample{{AngleRad: 0, Distance: 1.0}},
		now:     time.Now(),
	})

	if len(pub.clusterPayloads) != 1 {
		t.Fatalf("expected 1 cluster publish, got %d", len(pub.clusterPayloads))
	}
	if pub.clusterPayloads[0][0] != 1 {
		t.Errorf("expected 1 cluster (min_points<=1), got payload %v", pub.clusterPayloads[0])
	}
}

func TestOrchestratorAutoRegistersUnknownDevice(t *testing.T) {
	cfg := lidarconfig.DefaultConfig()
	controller := lidarconfig.NewController(filepath.Join(t.TempDir(), "config.json"), cfg)

	orch := New(controller, &fakePublisher{}, fakeEncoder{}, 33*time.Millisecond, false, false)
	orch.processScan("unknown-serial", scanMsg{
		samples: []ingest.Sample{{AngleRad: 0, Distance: 1.0}},
		now:     time.Now(),
	})

	if _, ok := controller.Snapshot().Devices["unknown-serial"]; !ok {
		t.Fatal("expected unknown device to be auto-registered")
	}
}

func TestOrchestratorSubmitScanDropsOldestPerSerial(t *testing.T) {
	cfg := lidarconfig.DefaultConfig()
	controller := lidarconfig.NewController(filepath.Join(t.TempDir(), "config.json"), cfg)
	orch := New(controller, &fakePublisher{}, fakeEncoder{}, 33*time.Millisecond, false, false)

	orch.SubmitScan("A", []ingest.Sample{{AngleRad: 0, Distance: 1.0}})
	orch.SubmitScan("A", []ingest.Sample{{AngleRad: 0, Distance: 2.0}})

	if len(orch.pending) != 1 {
		t.Fatalf("expected 1 pending entry for serial A, got %d", len(orch.pending))
	}
	if orch.pending["A"].samples[0].Distance != 2.0 {
		t.Errorf("expected latest scan to survive, got %+v", orch.pending["A"])
	}
}

func TestRepublishLatestDoesNotAdvanceTracker(t *testing.T) {
	cfg := lidarconfig.DefaultConfig()
	cfg.Cluster.MinPoints = 1
	cfg.Tracking.TrackTimeout = 2
	cfg.Tracking.MinMatchCount = 0
	// An ROI is needed for any detection to reach the tracker; this one
	// maps the scan's point (1,0) to (0.5,0.5).
	cfg.ROI = &lidarconfig.ROI{Corners: geometry.Quad{{0, -1}, {2, -1}, {2, 1}, {0, 1}}}
	controller := lidarconfig.NewController(filepath.Join(t.TempDir(), "config.json"), cfg)

	pub := &fakePublisher{}
	orch := New(controller, pub, fakeEncoder{}, 33*time.Millisecond, false, false)

	orch.processScan("A", scanMsg{
		samples: []ingest.Sample{{AngleRad: 0, Distance: 1.0}},
		now:     time.Now(),
	})
	if n := len(pub.smoothedPayloads); n != 1 || pub.smoothedPayloads[0][0] != 1 {
		t.Fatalf("expected 1 live track after first scan, got payloads %v", pub.smoothedPayloads)
	}

	// trackTimeout is 2 frames; republishing many times must not count
	// as frames advancing, or the track would be retired without any
	// new scan ever arriving.
	for i := 0; i < 10; i++ {
		orch.republishLatest()
	}

	last := pub.smoothedPayloads[len(pub.smoothedPayloads)-1]
	if last[0] != 1 {
		t.Fatalf("republishLatest must not advance the tracker; live track count changed to %d", last[0])
	}
	if got := len(pub.clusterPayloads); got != 11 {
		t.Fatalf("expected 1 processScan publish + 10 republishes = 11 cluster payloads, got %d", got)
	}
}

func TestOrchestratorRunStopsOnCancel(t *testing.T) {
	cfg := lidarconfig.DefaultConfig()
	controller := lidarconfig.NewController(filepath.Join(t.TempDir(), "config.json"), cfg)
	orch := New(controller, &fakePublisher{}, fakeEncoder{}, 5*time.Millisecond, false, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		orch.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after context cancellation")
	}
}
