package lidarconfig

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tether-systems/lidar2d-agent/internal/geometry"
)

func TestControllerSnapshotReflectsLatestSave(t *testing.T) {
	cfg := DefaultConfig()
	c := NewController(filepath.Join(t.TempDir(), "config.json"), cfg)

	next := cfg.Clone()
	next.Cluster.Eps = 0.77
	if err := c.SaveConfig(next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := c.Snapshot().Cluster.Eps; got != 0.77 {
		t.Fatalf("expected snapshot to reflect saved config, got Eps=%f", got)
	}
}

func TestControllerSaveConfigRejectsDegenerateROI(t *testing.T) {
	cfg := DefaultConfig()
	c := NewController(filepath.Join(t.TempDir(), "config.json"), cfg)

	bad := cfg.Clone()
	bad.ROI = &ROI{Corners: geometry.Quad{{0, 0}, {1, 0}, {2, 0}, {3, 0}}}

	if err := c.SaveConfig(bad); err == nil {
		t.Fatal("expected degenerate ROI to be rejected")
	}
	if c.Homography() != nil {
		t.Fatal("rejected ROI must not install a homography")
	}
}

func TestControllerSaveConfigInstallsHomography(t *testing.T) {
	cfg := DefaultConfig()
	c := NewController(filepath.Join(t.TempDir(), "config.json"), cfg)

	next := cfg.Clone()
	next.ROI = &ROI{Corners: geometry.Quad{{0, 0}, {10, 0}, {10, 10}, {0, 10}}}

	if err := c.SaveConfig(next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if c.Homography() == nil {
		t.Fatal("expected a homography to be installed")
	}
}

func TestControllerPersistsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := DefaultConfig()
	c := NewController(path, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		c.RunPersistence(ctx)
		close(done)
	}()

	next := cfg.Clone()
	next.Cluster.Eps = 0.42
	if err := c.SaveConfig(next); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil {
			var onDisk Config
			if json.Unmarshal(data, &onDisk) == nil && onDisk.Cluster.Eps == 0.42 {
				cancel()
				<-done
				return
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("config was not persisted to disk in time")
}

func TestLoadConfigMissingFileReturnsDefault(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "does-not-exist.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cluster.Eps != DefaultClusterParams().Eps {
		t.Fatalf("expected default cluster params, got %+v", cfg.Cluster)
	}
}
