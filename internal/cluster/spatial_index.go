// Package cluster implements §4.4: DBSCAN clustering over the union of
// every device's point buffer, accelerated by a grid-based spatial
// index and post-filtered by configurable size gates.
package cluster

import (
	"math"

	"github.com/tether-systems/lidar2d-agent/internal/geometry"
)

// Point is the 2D world-space point type clustering operates over.
type Point = geometry.Point

const estimatedPointsPerCell = 4

// spatialIndex is a regular grid over 2D points; cell size should
// approximately match the DBSCAN eps parameter so that a point's eps-
// neighborhood never spans more than the 3x3 block of cells around it.
type spatialIndex struct {
	cellSize float64
	grid     map[int64][]int
}

func newSpatialIndex(cellSize float64) *spatialIndex {
	return &spatialIndex{cellSize: cellSize, grid: make(map[int64][]int)}
}

func (si *spatialIndex) build(points []Point) {
	si.grid = make(map[int64][]int, len(points)/estimatedPointsPerCell+1)
	for i, p := range points {
		id := si.cellID(p.X, p.Y)
		si.grid[id] = append(si.grid[id], i)
	}
}

// cellID computes a unique cell identifier via Szudzik's pairing
// function over zigzag-encoded signed cell coordinates, so negative
// coordinates map to distinct non-negative pairs without collisions.
func (si *spatialIndex) cellID(x, y float64) int64 {
	cellX := int64(math.Floor(x / si.cellSize))
	cellY := int64(math.Floor(y / si.cellSize))
	return szudzikPair(zigzag(cellX), zigzag(cellY))
}

func zigzag(v int64) int64 {
	if v >= 0 {
		return 2 * v
	}
	return -2*v - 1
}

func szudzikPair(a, b int64) int64 {
	if a >= b {
		return a*a + a + b
	}
	return a + b*b
}

// regionQuery returns indices of every point within eps of points[idx],
// searching only the 3x3 block of grid cells around idx's cell.
func (si *spatialIndex) regionQuery(points []Point, idx int, eps float64) []int {
	p := points[idx]
	eps2 := eps * eps
	cellX := int64(math.Floor(p.X / si.cellSize))
	cellY := int64(math.Floor(p.Y / si.cellSize))

	var neighbors []int
	for dx := int64(-1); dx <= 1; dx++ {
		for dy := int64(-1); dy <= 1; dy++ {
			id := szudzikPair(zigzag(cellX+dx), zigzag(cellY+dy))
			for _, candidateIdx := range si.grid[id] {
				c := points[candidateIdx]
				ddx := c.X - p.X
				ddy := c.Y - p.Y
				if ddx*ddx+ddy*ddy <= eps2 {
					neighbors = append(neighbors, candidateIdx)
				}
			}
		}
	}
	return neighbors
}
