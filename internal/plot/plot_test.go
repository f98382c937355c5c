package plot

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWritePNG(t *testing.T) {
	rt := []float64{0, 1, 2, 3, 4}
	p := ClusterPlot{
		Cluster:   3,
		RT:        rt,
		Centroid:  []float64{0, 0.5, 1, 0.5, 0},
		LowerAxis: -1,
	}
	for i := 0; i < 30; i++ {
		p.Members = append(p.Members, []float64{0, 0.4, 0.9, 0.6, -0.1})
	}
	name := filepath.Join(t.TempDir(), "cluster_003.png")
	require.NoError(t, p.WritePNG(name))

	b, err := os.ReadFile(name)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(b))
	require.NoError(t, err)
	require.Equal(t, 800, img.Bounds().Dx())
	require.Equal(t, 400, img.Bounds().Dy())

	c, err := p.chart()
	require.NoError(t, err)
	require.Len(t, c.Series, MaxMembers+1)
}

func TestWritePNGLengthMismatch(t *testing.T) {
	p := ClusterPlot{RT: []float64{0, 1}, Centroid: []float64{0}}
	require.ErrorIs(t, p.WritePNG(filepath.Join(t.TempDir(), "x.png")), ErrLength)

	p = ClusterPlot{RT: []float64{0, 1}, Centroid: []float64{0, 1}, Members: [][]float64{{1}}}
	require.ErrorIs(t, p.WritePNG(filepath.Join(t.TempDir(), "x.png")), ErrLength)
}
