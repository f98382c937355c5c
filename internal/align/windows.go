package align

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// WindowInfo describes where a differential window comes from
type WindowInfo struct {
	Index   int     // Position in the slice of windows
	MzBin   int     // m/z bin of the window
	Mz      float64 // Center m/z of the bin
	RT      float64 // Retention time of the largest absolute difference
	ExpMax  float64 // Highest experimental intensity
	CtrlMax float64 // Highest control intensity
	DiffMax float64 // Signed difference at RT
}

// DifferentialWindows computes, for every m/z bin with signal in either
// condition, the experimental minus the control trace. A bin with signal in
// only one condition is compared with the neighbouring bins of the other
// condition, so m/z jitter of one bin does not count as a difference. Bins
// where the absolute difference never reaches threshold are skipped. Each
// window is scaled by its largest absolute difference, so values are in
// [-1, 1]. Windows are ordered by ascending m/z.
func DifferentialWindows(exp, ctrl *Traces, threshold float64) ([][]float64, []WindowInfo, error) {
	if exp.Grid != ctrl.Grid {
		return nil, nil, ErrGridMismatch
	}
	grid := exp.Grid
	n := grid.NumRT()
	zeros := make([]float64, n)

	var windows [][]float64
	var infos []WindowInfo
	// One-sided bins that were already compared with their lower neighbour
	paired := make(map[int]bool)
	for _, b := range unionBins(exp, ctrl) {
		if paired[b] {
			continue
		}
		e, c := exp.Trace(b), ctrl.Trace(b)
		if e == nil {
			e = exp.near(b, false)
			paired[b+1] = exp.Trace(b+1) != nil && ctrl.Trace(b+1) == nil
		}
		if c == nil {
			c = ctrl.near(b, false)
			paired[b+1] = ctrl.Trace(b+1) != nil && exp.Trace(b+1) == nil
		}
		if e == nil {
			e = zeros
		}
		if c == nil {
			c = zeros
		}
		diff := make([]float64, n)
		floats.SubTo(diff, e, c)

		maxIdx, minIdx := floats.MaxIdx(diff), floats.MinIdx(diff)
		extreme := maxIdx
		if -diff[minIdx] > diff[maxIdx] {
			extreme = minIdx
		}
		maxAbs := math.Abs(diff[extreme])
		if maxAbs == 0 || maxAbs < threshold {
			continue
		}
		info := WindowInfo{
			Index:   len(windows),
			MzBin:   b,
			Mz:      grid.Mz(b),
			RT:      grid.RT(extreme),
			ExpMax:  floats.Max(e),
			CtrlMax: floats.Max(c),
			DiffMax: diff[extreme],
		}
		for i := range diff {
			diff[i] /= maxAbs
		}
		windows = append(windows, diff)
		infos = append(infos, info)
	}
	return windows, infos, nil
}

func unionBins(a, b *Traces) []int {
	seen := make(map[int]bool, a.Len()+b.Len())
	var bins []int
	for _, t := range []*Traces{a, b} {
		for bin := range t.bins {
			if !seen[bin] {
				seen[bin] = true
				bins = append(bins, bin)
			}
		}
	}
	sort.Ints(bins)
	return bins
}
