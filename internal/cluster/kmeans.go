// Package cluster implements k-means clustering of low dimensional points
package cluster

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

var (
	// ErrNoPoints means there is nothing to cluster
	ErrNoPoints = errors.New("cluster: no points")
	// ErrDimension means points of different dimension were supplied
	ErrDimension = errors.New("cluster: points have different dimensions")
)

// KMeans holds the settings for k-means clustering
type KMeans struct {
	K       int   // Number of clusters, capped at the number of points
	MaxIter int   // Maximum number of Lloyd iterations, 0 means 300
	Seed    int64 // Seed for k-means++ initialization
}

// Centroids are the cluster centers that result from Fit
type Centroids [][]float64

// Fit clusters points. Initial centroids are picked with k-means++, after
// which assignments and centroids are updated until the assignment no
// longer changes. A cluster that becomes empty takes over the point that
// is farthest from its own centroid.
func (km KMeans) Fit(points [][]float64) (Centroids, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	dim := len(points[0])
	for _, p := range points {
		if len(p) != dim {
			return nil, ErrDimension
		}
	}
	k := km.K
	if k < 1 {
		k = 1
	}
	if k > len(points) {
		k = len(points)
	}
	maxIter := km.MaxIter
	if maxIter <= 0 {
		maxIter = 300
	}
	rnd := rand.New(rand.NewSource(km.Seed))

	centroids := initPlusPlus(points, k, rnd)
	assign := make([]int, len(points))
	for i := range assign {
		assign[i] = -1
	}
	counts := make([]int, k)
	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for i, p := range points {
			c := centroids.Predict(p)
			if c != assign[i] {
				assign[i] = c
				changed = true
			}
		}
		if !changed {
			break
		}
		for c := range centroids {
			for j := range centroids[c] {
				centroids[c][j] = 0
			}
			counts[c] = 0
		}
		for i, p := range points {
			floats.Add(centroids[assign[i]], p)
			counts[assign[i]]++
		}
		for c := range centroids {
			if counts[c] > 0 {
				floats.Scale(1/float64(counts[c]), centroids[c])
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				far := farthestPoint(points, assign, centroids)
				copy(centroids[c], points[far])
				counts[assign[far]]--
				assign[far] = c
				counts[c] = 1
			}
		}
	}
	return centroids, nil
}

// initPlusPlus picks k initial centroids, each next one with probability
// proportional to the squared distance to the nearest one already chosen
func initPlusPlus(points [][]float64, k int, rnd *rand.Rand) Centroids {
	centroids := make(Centroids, 0, k)
	first := points[rnd.Intn(len(points))]
	centroids = append(centroids, append([]float64(nil), first...))
	d2 := make([]float64, len(points))
	for len(centroids) < k {
		for i, p := range points {
			d := floats.Distance(p, centroids[centroids.Predict(p)], 2)
			d2[i] = d * d
		}
		sum := floats.Sum(d2)
		next := 0
		if sum == 0 {
			// All remaining points coincide with a centroid
			next = rnd.Intn(len(points))
		} else {
			r := rnd.Float64() * sum
			for i, d := range d2 {
				r -= d
				if r <= 0 {
					next = i
					break
				}
				next = i
			}
		}
		centroids = append(centroids, append([]float64(nil), points[next]...))
	}
	return centroids
}

func farthestPoint(points [][]float64, assign []int, centroids Centroids) int {
	far, farDist := 0, -1.0
	for i, p := range points {
		if d := floats.Distance(p, centroids[assign[i]], 2); d > farDist {
			far, farDist = i, d
		}
	}
	return far
}

// Predict returns the index of the centroid nearest to point
func (c Centroids) Predict(point []float64) int {
	best, bestDist := 0, math.Inf(1)
	for i, centroid := range c {
		if d := floats.Distance(point, centroid, 2); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// Assign predicts the cluster of every point
func (c Centroids) Assign(points [][]float64) ([]int, error) {
	out := make([]int, len(points))
	for i, p := range points {
		if len(c) > 0 && len(p) != len(c[0]) {
			return nil, ErrDimension
		}
		out[i] = c.Predict(p)
	}
	return out, nil
}

// Inertia returns the sum of squared distances of points to their nearest
// centroid
func (c Centroids) Inertia(points [][]float64) float64 {
	var sum float64
	for _, p := range points {
		d := floats.Distance(p, c[c.Predict(p)], 2)
		sum += d * d
	}
	return sum
}
