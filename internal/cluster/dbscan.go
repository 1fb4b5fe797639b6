package cluster

// Params configures the DBSCAN engine (§4.4).
type Params struct {
	Eps            float64
	MinPoints      int
	MaxClusterSize int // 0 disables the upper gate
	MinClusterSize int
}

// Cluster is one detected object: its centroid is the arithmetic mean
// of member coordinates, and Size is the member count.
type Cluster struct {
	Centroid Point
	Size     int
}

// DBSCAN runs density-based clustering over points (the concatenation
// of every active device's buffer) and returns clusters whose size
// falls within [MinClusterSize, MaxClusterSize]. Output ordering is
// stable with respect to input order but otherwise unspecified; noise
// points are discarded.
func DBSCAN(points []Point, params Params) []Cluster {
	if len(points) == 0 {
		return nil
	}

	n := len(points)
	labels := make([]int, n) // 0=unvisited, -1=noise, >0=clusterID
	clusterID := 0

	index := newSpatialIndex(params.Eps)
	index.build(points)

	for i := 0; i < n; i++ {
		if labels[i] != 0 {
			continue
		}
		neighbors := index.regionQuery(points, i, params.Eps)
		if len(neighbors) < params.MinPoints {
			labels[i] = -1
			continue
		}
		clusterID++
		expandCluster(points, index, labels, i, neighbors, clusterID, params.Eps, params.MinPoints)
	}

	return buildClusters(points, labels, clusterID, params)
}

func expandCluster(points []Point, index *spatialIndex, labels []int, seedIdx int, neighbors []int, clusterID int, eps float64, minPoints int) {
	labels[seedIdx] = clusterID

	for j := 0; j < len(neighbors); j++ {
		idx := neighbors[j]
		if labels[idx] == -1 {
			labels[idx] = clusterID // noise becomes a border point
		}
		if labels[idx] != 0 {
			continue
		}
		labels[idx] = clusterID
		newNeighbors := index.regionQuery(points, idx, eps)
		if len(newNeighbors) >= minPoints {
			neighbors = append(neighbors, newNeighbors...)
		}
	}
}

func buildClusters(points []Point, labels []int, maxClusterID int, params Params) []Cluster {
	buckets := make([][]int, maxClusterID+1)
	for i, label := range labels {
		if label >= 1 && label <= maxClusterID {
			buckets[label] = append(buckets[label], i)
		}
	}

	clusters := make([]Cluster, 0, maxClusterID)
	for cid := 1; cid <= maxClusterID; cid++ {
		members := buckets[cid]
		size := len(members)
		if size == 0 {
			continue
		}
		if size < params.MinClusterSize {
			continue
		}
		if params.MaxClusterSize > 0 && size > params.MaxClusterSize {
			continue
		}

		var sumX, sumY float64
		for _, idx := range members {
			sumX += points[idx].X
			sumY += points[idx].Y
		}
		clusters = append(clusters, Cluster{
			Centroid: Point{X: sumX / float64(size), Y: sumY / float64(size)},
			Size:     size,
		})
	}

	return clusters
}
