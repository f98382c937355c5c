package align

import (
	"fmt"
	"math"
	"sort"

	"github.com/524D/lcmsdiff/internal/mzml"
)

// Traces holds, for every m/z bin that has signal, the intensity over
// retention time. Bins without any signal are not stored.
type Traces struct {
	Label string
	Grid  Grid
	Runs  []RunStats // The LCMS runs the traces are made of
	bins  map[int][]float64
}

// RunStats summarizes the spectra of one LCMS run
type RunStats struct {
	Sample  string
	Spectra int     // All spectra in the run
	MS1     int     // MS1 spectra within the retention time range
	Profile int     // MS1 spectra in profile mode
	TIC     float64 // Total ion current summed over the MS1 spectra
}

// NewTraces returns empty traces on grid
func NewTraces(label string, grid Grid) *Traces {
	return &Traces{Label: label, Grid: grid, bins: make(map[int][]float64)}
}

// Len returns the number of m/z bins with signal
func (t *Traces) Len() int {
	return len(t.bins)
}

// Bins returns the m/z bins with signal in ascending order
func (t *Traces) Bins() []int {
	bins := make([]int, 0, len(t.bins))
	for b := range t.bins {
		bins = append(bins, b)
	}
	sort.Ints(bins)
	return bins
}

// Trace returns the intensities of an m/z bin, or nil if the bin has no
// signal. The returned slice must not be modified.
func (t *Traces) Trace(bin int) []float64 {
	return t.bins[bin]
}

// near returns the element-wise maximum of the traces of the m/z bins
// next to bin, and of bin itself if self is set. It returns nil if none of
// these bins has signal.
func (t *Traces) near(bin int, self bool) []float64 {
	var tr []float64
	for _, b := range []int{bin - 1, bin, bin + 1} {
		if b == bin && !self {
			continue
		}
		n := t.bins[b]
		if n == nil {
			continue
		}
		if tr == nil {
			tr = make([]float64, len(n))
		}
		for i, v := range n {
			if v > tr[i] {
				tr[i] = v
			}
		}
	}
	return tr
}

// Add records intensity at (m/z bin, rt bin). A bin keeps the highest
// intensity that was added to it.
func (t *Traces) Add(mzIndex, rtIndex int, intens float64) {
	if intens <= 0 {
		return
	}
	tr, ok := t.bins[mzIndex]
	if !ok {
		tr = make([]float64, t.Grid.NumRT())
		t.bins[mzIndex] = tr
	}
	if intens > tr[rtIndex] {
		tr[rtIndex] = intens
	}
}

// LoadReplicate bins the MS1 spectra of a single LCMS run. Spectra without
// retention time and peaks outside the grid are ignored.
func LoadReplicate(ms *mzml.MzML, label string, grid Grid) (*Traces, error) {
	t := NewTraces(label, grid)
	stats := RunStats{Sample: label, Spectra: ms.NumSpecs()}
	for i := 0; i < ms.NumSpecs(); i++ {
		msLevel, err := ms.MSLevel(i)
		if err != nil {
			return nil, scanErr(ms, i, err)
		}
		if msLevel != 1 {
			continue
		}
		rt, err := ms.RetentionTime(i)
		if err != nil {
			return nil, scanErr(ms, i, err)
		}
		rtIndex, ok := grid.RTIndex(rt)
		if !ok {
			continue
		}
		peaks, err := ms.ReadScan(i)
		if err != nil {
			return nil, scanErr(ms, i, err)
		}
		for _, p := range peaks {
			if mzIndex, ok := grid.MzIndex(p.Mz); ok {
				t.Add(mzIndex, rtIndex, p.Intens)
			}
		}

		stats.MS1++
		if centroid, _ := ms.Centroid(i); !centroid {
			stats.Profile++
		}
		tic, err := ms.TotalIonCurrent(i)
		if err != nil {
			return nil, scanErr(ms, i, err)
		}
		if math.IsNaN(tic) {
			tic = 0
			for _, p := range peaks {
				tic += p.Intens
			}
		}
		stats.TIC += tic
	}
	t.Runs = []RunStats{stats}
	return t, nil
}

func scanErr(ms *mzml.MzML, i int, err error) error {
	id, idErr := ms.ScanID(i)
	if idErr != nil {
		return err
	}
	return fmt.Errorf("%s: %w", id, err)
}

// MzML converts the traces into an mzML document with one centroid MS1
// spectrum per retention time bin
func (t *Traces) MzML() (mzml.MzML, error) {
	f := mzml.New(t.Label)
	n := t.Grid.NumRT()
	for i := 0; i < n; i++ {
		if _, err := f.AppendSpectrum(t.Grid.RT(i), 1, true, nil); err != nil {
			return f, err
		}
	}
	peaks := make([][]mzml.Peak, n)
	for _, b := range t.Bins() {
		for i, v := range t.bins[b] {
			if v > 0 {
				peaks[i] = append(peaks[i], mzml.Peak{Mz: t.Grid.Mz(b), Intens: v})
			}
		}
	}
	for i, p := range peaks {
		if len(p) == 0 {
			continue
		}
		if err := f.UpdateScan(i, p); err != nil {
			return f, err
		}
	}
	return f, nil
}
