package cluster

import (
	"math"
	"testing"
)

func TestDBSCANEmptyInput(t *testing.T) {
	if got := DBSCAN(nil, Params{Eps: 0.3, MinPoints: 1}); got != nil {
		t.Fatalf("expected nil for empty input, got %+v", got)
	}
}

func TestDBSCANSinglePointMinPointsOne(t *testing.T) {
	points := []Point{{X: 1.0, Y: 0.0}}
	clusters := DBSCAN(points, Params{Eps: 0.3, MinPoints: 1})
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].Size != 1 || clusters[0].Centroid != points[0] {
		t.Errorf("unexpected cluster: %+v", clusters[0])
	}
}

func TestDBSCANSinglePointMinPointsTwoIsNoise(t *testing.T) {
	points := []Point{{X: 1.0, Y: 0.0}}
	clusters := DBSCAN(points, Params{Eps: 0.3, MinPoints: 2})
	if len(clusters) != 0 {
		t.Fatalf("expected 0 clusters (isolated point is noise), got %d", len(clusters))
	}
}

func TestDBSCANGroupsNearbyPoints(t *testing.T) {
	points := []Point{
		{X: 0.0, Y: 0.0},
		{X: 0.1, Y: 0.0},
		{X: 0.2, Y: 0.0},
		{X: 10.0, Y: 10.0}, // far outlier, noise
	}
	clusters := DBSCAN(points, Params{Eps: 0.3, MinPoints: 2})
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d: %+v", len(clusters), clusters)
	}
	if clusters[0].Size != 3 {
		t.Errorf("expected cluster size 3, got %d", clusters[0].Size)
	}
	wantX, wantY := 0.1, 0.0
	if math.Abs(clusters[0].Centroid.X-wantX) > 1e-12 || math.Abs(clusters[0].Centroid.Y-wantY) > 1e-12 {
		t.Errorf("expected centroid (%f,%f), got %+v", wantX, wantY, clusters[0].Centroid)
	}
}

func TestDBSCANMaxClusterSizeGate(t *testing.T) {
	points := make([]Point, 0, 5)
	for i := 0; i < 5; i++ {
		points = append(points, Point{X: float64(i) * 0.05, Y: 0})
	}
	clusters := DBSCAN(points, Params{Eps: 0.3, MinPoints: 2, MaxClusterSize: 3})
	if len(clusters) != 0 {
		t.Fatalf("expected oversized cluster to be dropped, got %+v", clusters)
	}
}

func TestDBSCANMinClusterSizeGate(t *testing.T) {
	points := []Point{{X: 0, Y: 0}, {X: 0.1, Y: 0}}
	clusters := DBSCAN(points, Params{Eps: 0.3, MinPoints: 2, MinClusterSize: 3})
	if len(clusters) != 0 {
		t.Fatalf("expected undersized cluster to be dropped, got %+v", clusters)
	}
}
