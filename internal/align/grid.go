package align

import (
	"errors"
	"fmt"
	"math"
)

// Grid defines how LCMS peaks are binned. m/z bins are centered on
// MzMin + i*MzBin, retention time bins start at RTMin + i*RTInterval.
// Retention times are in seconds.
type Grid struct {
	MzMin      float64
	MzMax      float64
	MzBin      float64
	RTMin      float64
	RTMax      float64
	RTInterval float64
}

var (
	// ErrInvalidGrid means the grid has an empty range or a non-positive bin size
	ErrInvalidGrid = errors.New("align: invalid grid")
	// ErrGridMismatch means traces binned on different grids were combined
	ErrGridMismatch = errors.New("align: traces have different grids")
)

// Validate checks that the grid has at least one m/z and one retention
// time bin
func (g Grid) Validate() error {
	switch {
	case g.MzBin <= 0 || g.RTInterval <= 0:
		return fmt.Errorf("%w: bin sizes must be > 0 (m/z %g, rt %g)", ErrInvalidGrid, g.MzBin, g.RTInterval)
	case g.MzMin >= g.MzMax:
		return fmt.Errorf("%w: m/z range %g:%g", ErrInvalidGrid, g.MzMin, g.MzMax)
	case g.RTMin >= g.RTMax || g.NumRT() < 1:
		return fmt.Errorf("%w: retention time range %g:%g", ErrInvalidGrid, g.RTMin, g.RTMax)
	}
	return nil
}

// NumRT returns the number of retention time bins, which is also the
// length of every trace
func (g Grid) NumRT() int {
	// The small offset avoids losing a bin to rounding, e.g. 450/0.2
	return int(math.Floor((g.RTMax-g.RTMin)/g.RTInterval + 1e-6))
}

// NumMz returns the number of m/z bins
func (g Grid) NumMz() int {
	return int(math.Round((g.MzMax-g.MzMin)/g.MzBin)) + 1
}

// MzIndex returns the m/z bin of mz. ok is false if mz is outside the grid.
func (g Grid) MzIndex(mz float64) (int, bool) {
	if mz < g.MzMin || mz > g.MzMax {
		return 0, false
	}
	return int(math.Round((mz - g.MzMin) / g.MzBin)), true
}

// Mz returns the center m/z of a bin
func (g Grid) Mz(index int) float64 {
	return g.MzMin + float64(index)*g.MzBin
}

// RTIndex returns the retention time bin of rt. ok is false if rt is
// outside the grid.
func (g Grid) RTIndex(rt float64) (int, bool) {
	if rt < g.RTMin {
		return 0, false
	}
	// Bin starts written by RT must map back to their own bin
	i := int(math.Floor((rt-g.RTMin)/g.RTInterval + 1e-9))
	if i >= g.NumRT() {
		return 0, false
	}
	return i, true
}

// RT returns the start of a retention time bin
func (g Grid) RT(index int) float64 {
	return g.RTMin + float64(index)*g.RTInterval
}

// RTs returns the start of all retention time bins
func (g Grid) RTs() []float64 {
	rts := make([]float64, g.NumRT())
	for i := range rts {
		rts[i] = g.RT(i)
	}
	return rts
}
