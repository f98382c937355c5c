// Package plot renders cluster profiles as PNG images
package plot

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/carbocation/pfx"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// MaxMembers is the maximum number of member windows drawn per cluster
const MaxMembers = 25

// ErrLength means a series does not match the retention time axis
var ErrLength = errors.New("plot: series length does not match retention times")

var memberColor = drawing.Color{R: 160, G: 160, B: 160, A: 255}

// ClusterPlot is the profile of one cluster: the decoded centroid and
// (some of) the windows assigned to it, all against retention time
type ClusterPlot struct {
	Cluster   int
	RT        []float64
	Centroid  []float64
	Members   [][]float64
	LowerAxis float64
}

func (p ClusterPlot) chart() (chart.Chart, error) {
	if len(p.Centroid) != len(p.RT) {
		return chart.Chart{}, ErrLength
	}
	xMin, xMax := 0.0, 1.0
	if len(p.RT) > 0 {
		xMin, xMax = p.RT[0], p.RT[len(p.RT)-1]
	}
	if xMax <= xMin {
		xMax = xMin + 1
	}
	yMin := p.LowerAxis
	if yMin >= 1 {
		yMin = -1
	}

	var series []chart.Series
	for i, m := range p.Members {
		if i == MaxMembers {
			break
		}
		if len(m) != len(p.RT) {
			return chart.Chart{}, ErrLength
		}
		series = append(series, chart.ContinuousSeries{
			XValues: p.RT,
			YValues: m,
			Style: chart.Style{
				StrokeColor: memberColor,
				StrokeWidth: 0.5,
			},
		})
	}
	series = append(series, chart.ContinuousSeries{
		Name:    fmt.Sprintf("cluster %d", p.Cluster),
		XValues: p.RT,
		YValues: p.Centroid,
		Style: chart.Style{
			StrokeColor: drawing.ColorBlue,
			StrokeWidth: 2,
		},
	})

	return chart.Chart{
		Title:  fmt.Sprintf("Cluster %d (%d windows)", p.Cluster, len(p.Members)),
		Width:  800,
		Height: 400,
		XAxis: chart.XAxis{
			Name:  "Retention time (s)",
			Range: &chart.ContinuousRange{Min: xMin, Max: xMax},
		},
		YAxis: chart.YAxis{
			Name:  "Normalized differential",
			Range: &chart.ContinuousRange{Min: yMin, Max: 1},
		},
		Series: series,
	}, nil
}

// WritePNG renders the plot to file name
func (p ClusterPlot) WritePNG(name string) error {
	graph, err := p.chart()
	if err != nil {
		return err
	}
	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return pfx.Err(fmt.Errorf("cluster %d: %w", p.Cluster, err))
	}
	f, err := os.Create(name)
	if err != nil {
		return pfx.Err(err)
	}
	if _, err := buffer.WriteTo(f); err != nil {
		f.Close()
		return pfx.Err(err)
	}
	return f.Close()
}
