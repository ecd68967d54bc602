package segment

import (
	"context"
	"math"
	"math/rand"
	"slices"

	"retail-analytics/internal/stats"
)

// StandardScale rescales every column to zero mean and unit population
// variance. Constant columns scale to zero.
func StandardScale(x [][]float64) [][]float64 {
	if len(x) == 0 {
		return nil
	}
	cols := len(x[0])
	out := make([][]float64, len(x))
	for i := range out {
		out[i] = make([]float64, cols)
	}

	column := make([]float64, len(x))
	for j := 0; j < cols; j++ {
		for i := range x {
			column[i] = stats.Finite(x[i][j])
		}
		mean, std := stats.MeanStd(column)
		for i := range x {
			if std == 0 {
				out[i][j] = 0
				continue
			}
			out[i][j] = (column[i] - mean) / std
		}
	}
	return out
}

// KMeansResult holds cluster assignments and centroids.
type KMeansResult struct {
	Labels     []int
	Centroids  [][]float64
	Iterations int
}

// KMeans partitions points into k clusters with Lloyd's algorithm, seeding
// centroids with k-means++ from rng. It stops once assignments no longer
// change or after maxIter rounds.
func KMeans(ctx context.Context, points [][]float64, k, maxIter int, rng *rand.Rand) (KMeansResult, error) {
	n := len(points)
	if n == 0 || k <= 0 {
		return KMeansResult{}, nil
	}
	k = min(k, n)

	centroids := seedCentroids(points, k, rng)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	iter := 0
	for iter < maxIter {
		if err := ctx.Err(); err != nil {
			return KMeansResult{}, err
		}
		iter++

		changed := false
		for i, p := range points {
			best := nearest(p, centroids)
			if best != labels[i] {
				labels[i] = best
				changed = true
			}
		}
		if !changed {
			break
		}
		centroids = recompute(points, labels, centroids)
	}

	return KMeansResult{Labels: labels, Centroids: centroids, Iterations: iter}, nil
}

func seedCentroids(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, slices.Clone(points[rng.Intn(len(points))]))

	dist := make([]float64, len(points))
	for len(centroids) < k {
		var total float64
		for i, p := range points {
			d := stats.Distance(p, centroids[nearest(p, centroids)])
			dist[i] = d * d
			total += dist[i]
		}
		if total == 0 {
			// every point sits on a centroid already; duplicate one
			centroids = append(centroids, slices.Clone(points[rng.Intn(len(points))]))
			continue
		}
		target := rng.Float64() * total
		pick := len(points) - 1
		for i, d := range dist {
			target -= d
			if target <= 0 {
				pick = i
				break
			}
		}
		centroids = append(centroids, slices.Clone(points[pick]))
	}
	return centroids
}

func nearest(p []float64, centroids [][]float64) int {
	best, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := stats.Distance(p, centroid); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best
}

// recompute moves each centroid to the mean of its points. Empty clusters
// keep their previous centroid.
func recompute(points [][]float64, labels []int, prev [][]float64) [][]float64 {
	dims := len(points[0])
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for c := range sums {
		sums[c] = make([]float64, dims)
	}
	for i, p := range points {
		c := labels[i]
		counts[c]++
		for d, v := range p {
			sums[c][d] += v
		}
	}

	next := make([][]float64, len(prev))
	for c := range next {
		if counts[c] == 0 {
			next[c] = slices.Clone(prev[c])
			continue
		}
		next[c] = make([]float64, dims)
		for d := range dims {
			next[c][d] = sums[c][d] / float64(counts[c])
		}
	}
	return next
}
