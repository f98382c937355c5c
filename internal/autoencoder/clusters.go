package autoencoder

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/524D/lcmsdiff/internal/align"
	"github.com/524D/lcmsdiff/internal/cluster"
	"github.com/524D/lcmsdiff/internal/plot"
	"github.com/524D/lcmsdiff/internal/results"
	"github.com/carbocation/pfx"
)

// FitClusters runs k-means on encodings. The number of clusters is capped
// at the number of encodings.
func (m *Model) FitClusters(encodings [][]float64) error {
	if len(encodings) == 0 {
		return ErrNoSamples
	}
	for i, e := range encodings {
		if len(e) != m.Config.EncodingSize {
			return fmt.Errorf("%w: encoding %d has length %d", ErrEncodingSize, i, len(e))
		}
	}
	km := cluster.KMeans{K: m.Config.ClusterNumber, Seed: m.Config.Seed}
	c, err := km.Fit(encodings)
	if err != nil {
		return err
	}
	m.Centroids = c
	return nil
}

// PredictClusters assigns each encoding to its nearest cluster and writes
// the table <outputDirectory>/<name>.tsv. Windows with a retention time
// below dropRT are left out of the table. The returned assignments cover
// all encodings.
func (m *Model) PredictClusters(encodings, windows [][]float64, aux []align.WindowInfo,
	name string, dropRT float64) ([]int, error) {
	if !m.Clustered() {
		return nil, ErrNotClustered
	}
	if len(encodings) != len(windows) || len(encodings) != len(aux) {
		return nil, ErrLength
	}
	assign, err := m.Centroids.Assign(encodings)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingSize, err)
	}
	rows := make([]results.Row, 0, len(assign))
	for i, c := range assign {
		if aux[i].RT < dropRT {
			continue
		}
		rows = append(rows, results.Row{
			Window:  aux[i].Index,
			Cluster: c,
			Mz:      aux[i].Mz,
			RT:      aux[i].RT,
			ExpMax:  aux[i].ExpMax,
			CtrlMax: aux[i].CtrlMax,
			DiffMax: aux[i].DiffMax,
		})
	}
	if err := results.Write(filepath.Join(m.outDir, name+".tsv"), rows); err != nil {
		return nil, err
	}
	m.lastWindows = windows
	m.lastAssign = assign
	return assign, nil
}

// ClusterSizes returns the number of windows per cluster of the last
// PredictClusters call
func (m *Model) ClusterSizes() []int {
	sizes := make([]int, len(m.Centroids))
	for _, c := range m.lastAssign {
		sizes[c]++
	}
	return sizes
}

// Visualize writes one plot per cluster to directory
// <outputDirectory>/<name>_clusters. Each plot shows the decoded centroid
// and windows assigned to the cluster by the last PredictClusters call.
// lowerAxis is the lower limit of the y axis.
func (m *Model) Visualize(name string, lowerAxis float64) error {
	if !m.Clustered() {
		return ErrNotClustered
	}
	decoded, err := m.Decode(m.Centroids)
	if err != nil {
		return err
	}
	dir := filepath.Join(m.outDir, name+"_clusters")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return pfx.Err(err)
	}
	rt := m.rtAxis()
	members := make([][][]float64, len(m.Centroids))
	for i, c := range m.lastAssign {
		members[c] = append(members[c], m.lastWindows[i])
	}
	for c := range m.Centroids {
		p := plot.ClusterPlot{
			Cluster:   c,
			RT:        rt,
			Centroid:  decoded[c],
			Members:   members[c],
			LowerAxis: lowerAxis,
		}
		if err := p.WritePNG(filepath.Join(dir, fmt.Sprintf("cluster_%03d.png", c))); err != nil {
			return err
		}
	}
	return nil
}

// rtAxis returns the retention time of each window position, or the
// position itself when the grid does not match the window length
func (m *Model) rtAxis() []float64 {
	if g := m.Grid(); g.Validate() == nil && g.NumRT() == m.Config.WindowLength {
		return g.RTs()
	}
	rt := make([]float64, m.Config.WindowLength)
	for i := range rt {
		rt[i] = float64(i)
	}
	return rt
}
