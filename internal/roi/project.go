// Package roi implements §4.5: projecting cluster centroids through the
// cached ROI homography and classifying them inside/outside the unit
// square with a configurable margin.
package roi

import (
	"github.com/tether-systems/lidar2d-agent/internal/cluster"
	"github.com/tether-systems/lidar2d-agent/internal/geometry"
)

// ProjectedPoint is a cluster centroid expressed in unit-square ROI
// coordinates, carrying a reference back to its source cluster.
type ProjectedPoint struct {
	U, V    float64
	Inside  bool
	Cluster cluster.Cluster
}

// Project applies homography h to every cluster's centroid and
// classifies the result as inside [-m, 1+m] x [-m, 1+m] for margin m.
// When includeOutside is false, outside points are dropped; when h is
// nil (no ROI configured), Project returns an empty list, per §4.5.
func Project(clusters []cluster.Cluster, h *geometry.Homography, margin float64, includeOutside bool) []ProjectedPoint {
	if h == nil {
		return nil
	}

	out := make([]ProjectedPoint, 0, len(clusters))
	for _, c := range clusters {
		p, err := geometry.Project(*h, c.Centroid)
		if err != nil {
			continue // degenerate projection for this point; skip rather than fail the frame
		}
		inside := p.X >= -margin && p.X <= 1+margin && p.Y >= -margin && p.Y <= 1+margin
		if !inside && !includeOutside {
			continue
		}
		out = append(out, ProjectedPoint{U: p.X, V: p.Y, Inside: inside, Cluster: c})
	}
	return out
}
