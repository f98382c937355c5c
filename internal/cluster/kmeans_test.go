package cluster

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

// blobs returns n points around each of the given centers
func blobs(centers [][]float64, n int, seed int64) [][]float64 {
	rnd := rand.New(rand.NewSource(seed))
	var points [][]float64
	for _, c := range centers {
		for i := 0; i < n; i++ {
			p := make([]float64, len(c))
			for j := range c {
				p[j] = c[j] + 0.1*rnd.NormFloat64()
			}
			points = append(points, p)
		}
	}
	return points
}

func TestFitSeparatesBlobs(t *testing.T) {
	centers := [][]float64{{0, 0}, {10, 10}, {-10, 10}}
	points := blobs(centers, 30, 7)
	c, err := KMeans{K: 3, Seed: 1}.Fit(points)
	require.NoError(t, err)
	require.Len(t, c, 3)

	assign, err := c.Assign(points)
	require.NoError(t, err)
	// All points of a blob share a cluster, and blobs get distinct clusters
	seen := map[int]bool{}
	for b := range centers {
		first := assign[b*30]
		for i := 0; i < 30; i++ {
			require.Equal(t, first, assign[b*30+i])
		}
		require.False(t, seen[first])
		seen[first] = true
	}
	for _, center := range centers {
		got := c[c.Predict(center)]
		require.InDelta(t, center[0], got[0], 0.1)
		require.InDelta(t, center[1], got[1], 0.1)
	}
	require.Less(t, c.Inertia(points), 90*0.1)
}

func TestFitDeterministic(t *testing.T) {
	points := blobs([][]float64{{0, 0, 0}, {1, 2, 3}}, 20, 3)
	a, err := KMeans{K: 4, Seed: 42}.Fit(points)
	require.NoError(t, err)
	b, err := KMeans{K: 4, Seed: 42}.Fit(points)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestFitEdgeCases(t *testing.T) {
	_, err := KMeans{K: 2}.Fit(nil)
	require.ErrorIs(t, err, ErrNoPoints)

	_, err = KMeans{K: 2}.Fit([][]float64{{1, 2}, {1}})
	require.ErrorIs(t, err, ErrDimension)

	// More clusters than points
	c, err := KMeans{K: 10}.Fit([][]float64{{1}, {2}, {3}})
	require.NoError(t, err)
	require.Len(t, c, 3)

	// Identical points
	c, err = KMeans{K: 2, Seed: 5}.Fit([][]float64{{1, 1}, {1, 1}, {1, 1}})
	require.NoError(t, err)
	require.Len(t, c, 2)
	require.Equal(t, []float64{1, 1}, c[c.Predict([]float64{1, 1})])

	_, err = c.Assign([][]float64{{1, 2, 3}})
	require.ErrorIs(t, err, ErrDimension)
}
