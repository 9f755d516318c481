package layout

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// cluster is a 1-D group of coordinates.
type cluster struct {
	center  float64
	members int
}

// clusterPositions groups sorted 1-D values whose neighbours lie within
// eps of each other, returning each group's mean.
func clusterPositions(values []float64, eps float64) []cluster {
	if len(values) == 0 {
		return nil
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	var clusters []cluster
	start := 0
	for i := 1; i <= len(sorted); i++ {
		if i < len(sorted) && sorted[i]-sorted[i-1] <= eps {
			continue
		}
		group := sorted[start:i]
		clusters = append(clusters, cluster{
			center:  stat.Mean(group, nil),
			members: len(group),
		})
		start = i
	}
	return clusters
}

// filterRegularSpacing drops cluster centers whose gaps to both
// neighbours deviate from the median gap by more than two standard
// deviations. Keeps grid lines, rejects stray text or smudges that
// happened to cluster.
func filterRegularSpacing(clusters []cluster) []cluster {
	if len(clusters) < 4 {
		return clusters
	}

	gaps := make([]float64, len(clusters)-1)
	for i := 1; i < len(clusters); i++ {
		gaps[i-1] = clusters[i].center - clusters[i-1].center
	}
	median := medianOf(gaps)
	std := stat.StdDev(gaps, nil)
	if std < 1 {
		std = 1
	}

	outlier := func(gap float64) bool {
		return math.Abs(gap-median) > 2*std
	}

	kept := clusters[:0:0]
	for i, c := range clusters {
		leftBad := i > 0 && outlier(gaps[i-1])
		rightBad := i < len(clusters)-1 && outlier(gaps[i])
		if (i == 0 && rightBad && gaps[i] > median) ||
			(i == len(clusters)-1 && leftBad && gaps[i-1] > median) ||
			(i > 0 && i < len(clusters)-1 && leftBad && rightBad) {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

// splitBlocks partitions cluster centers into runs separated by gaps
// noticeably wider than the typical intra-run spacing.
func splitBlocks(clusters []cluster, gapFactor float64) [][]cluster {
	if len(clusters) == 0 {
		return nil
	}
	gaps := make([]float64, 0, len(clusters)-1)
	for i := 1; i < len(clusters); i++ {
		gaps = append(gaps, clusters[i].center-clusters[i-1].center)
	}
	median := medianOf(gaps)

	var blocks [][]cluster
	start := 0
	for i := 1; i <= len(clusters); i++ {
		if i < len(clusters) && clusters[i].center-clusters[i-1].center <= gapFactor*median {
			continue
		}
		blocks = append(blocks, clusters[start:i])
		start = i
	}
	return blocks
}

func medianOf(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}
