package align

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/524D/lcmsdiff/internal/mzml"
	"github.com/stretchr/testify/require"
)

var testGrid = Grid{MzMin: 100, MzMax: 200, MzBin: 0.5, RTMin: 0, RTMax: 10, RTInterval: 1}

// memOpener serves mzML files from memory
type memOpener map[string][]byte

func (m memOpener) Open(_ context.Context, dir, sample string) (io.ReadCloser, string, error) {
	b, ok := m[sample]
	if !ok {
		return nil, "", errors.New("not found: " + sample)
	}
	return io.NopCloser(bytes.NewReader(b)), dir + "/" + sample, nil
}

type peakAt struct {
	rt, mz, intens float64
}

func makeRun(t *testing.T, peaks ...peakAt) []byte {
	t.Helper()
	f := mzml.New("test")
	byRT := map[float64][]mzml.Peak{}
	var rts []float64
	for _, p := range peaks {
		if _, ok := byRT[p.rt]; !ok {
			rts = append(rts, p.rt)
		}
		byRT[p.rt] = append(byRT[p.rt], mzml.Peak{Mz: p.mz, Intens: p.intens})
	}
	for _, rt := range rts {
		_, err := f.AppendSpectrum(rt, 1, true, byRT[rt])
		require.NoError(t, err)
	}
	// An MS2 spectrum must be ignored
	_, err := f.AppendSpectrum(1, 2, true, []mzml.Peak{{Mz: 150, Intens: 1e9}})
	require.NoError(t, err)
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestGrid(t *testing.T) {
	g := Grid{MzMin: 49, MzMax: 950, MzBin: 0.01, RTMin: 0, RTMax: 450, RTInterval: 0.2}
	require.NoError(t, g.Validate())
	require.Equal(t, 2250, g.NumRT())
	require.Equal(t, 90101, g.NumMz())

	i, ok := g.MzIndex(49.004)
	require.True(t, ok)
	require.Equal(t, 0, i)
	i, ok = g.MzIndex(49.006)
	require.True(t, ok)
	require.Equal(t, 1, i)
	_, ok = g.MzIndex(48.9)
	require.False(t, ok)
	_, ok = g.MzIndex(950.1)
	require.False(t, ok)

	for _, idx := range []int{0, 1, 3, 7, 1234, 2249} {
		got, ok := g.RTIndex(g.RT(idx))
		require.True(t, ok)
		require.Equal(t, idx, got)
	}
	_, ok = g.RTIndex(450)
	require.False(t, ok)
	_, ok = g.RTIndex(-0.1)
	require.False(t, ok)

	require.ErrorIs(t, Grid{MzMin: 2, MzMax: 1, MzBin: 1, RTMax: 1, RTInterval: 1}.Validate(), ErrInvalidGrid)
	require.ErrorIs(t, Grid{MzMin: 1, MzMax: 2, MzBin: 0, RTMax: 1, RTInterval: 1}.Validate(), ErrInvalidGrid)
	require.ErrorIs(t, Grid{MzMin: 1, MzMax: 2, MzBin: 1, RTMax: 1, RTInterval: 2}.Validate(), ErrInvalidGrid)
}

func TestLoadReplicate(t *testing.T) {
	run := makeRun(t,
		peakAt{1, 150.1, 100},
		peakAt{1, 150.2, 300}, // same bin as 150.1, highest wins
		peakAt{2, 150.0, 50},
		peakAt{3, 99, 1000},  // below m/z range
		peakAt{20, 150, 999}, // beyond rt range
	)
	ms, err := mzml.Read(bytes.NewReader(run))
	require.NoError(t, err)
	tr, err := LoadReplicate(&ms, "r1", testGrid)
	require.NoError(t, err)
	require.Equal(t, []int{100}, tr.Bins())
	want := make([]float64, 10)
	want[1] = 300
	want[2] = 50
	require.Equal(t, want, tr.Trace(100))
	require.Equal(t, []RunStats{{Sample: "r1", Spectra: 5, MS1: 3, Profile: 0, TIC: 1450}}, tr.Runs)
}

func TestMergeReplicates(t *testing.T) {
	opener := memOpener{
		"a": makeRun(t, peakAt{1, 150, 100}, peakAt{2, 150, 400}, peakAt{1, 180, 10}),
		// 150.5 is the neighbouring bin of 150; 180 is missing
		"b": makeRun(t, peakAt{1, 150.5, 200}, peakAt{2, 150.5, 300}, peakAt{2, 120, 5}),
	}
	outDir := t.TempDir()
	merged, err := MergeReplicates(context.Background(), opener, testGrid, "plate", outDir,
		[]string{"a", "b"}, "experimental_condition")
	require.NoError(t, err)
	require.Equal(t, "experimental_condition", merged.Label)
	require.Equal(t, []int{100}, merged.Bins())
	require.Equal(t, 100.0, merged.Trace(100)[1])
	require.Equal(t, 300.0, merged.Trace(100)[2])
	require.Len(t, merged.Runs, 2)
	require.Equal(t, "a", merged.Runs[0].Sample)
	require.Equal(t, "b", merged.Runs[1].Sample)
	require.Equal(t, 510.0, merged.Runs[0].TIC)

	// The merged traces are written and can be read back
	f, err := os.Open(filepath.Join(outDir, "experimental_condition.mzML"))
	require.NoError(t, err)
	defer f.Close()
	ms, err := mzml.Read(f)
	require.NoError(t, err)
	require.Equal(t, testGrid.NumRT(), ms.NumSpecs())
	back, err := LoadReplicate(&ms, "back", testGrid)
	require.NoError(t, err)
	require.Equal(t, merged.Trace(100), back.Trace(100))
	require.Equal(t, testGrid.NumRT(), back.Runs[0].MS1)
	require.Equal(t, 400.0, back.Runs[0].TIC)
}

func TestMergeNoSamples(t *testing.T) {
	merged, err := MergeReplicates(context.Background(), memOpener{}, testGrid, "plate", "",
		nil, "ctrl_condition")
	require.NoError(t, err)
	require.Equal(t, 0, merged.Len())
}

func TestMergeErrors(t *testing.T) {
	_, err := MergeReplicates(context.Background(), memOpener{}, testGrid, "plate", "",
		[]string{"nope"}, "x")
	require.Error(t, err)

	other := testGrid
	other.MzBin = 1
	_, err = Merge("x", testGrid, NewTraces("a", testGrid), NewTraces("b", other))
	require.ErrorIs(t, err, ErrGridMismatch)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = MergeReplicates(ctx, memOpener{}, testGrid, "plate", "", []string{"a"}, "x")
	require.ErrorIs(t, err, context.Canceled)
}

func TestDifferentialWindows(t *testing.T) {
	exp := NewTraces("exp", testGrid)
	ctrl := NewTraces("ctrl", testGrid)
	// Up in experimental
	exp.Add(10, 3, 5000)
	exp.Add(10, 4, 2500)
	ctrl.Add(10, 3, 1000)
	// Same in both: no window
	exp.Add(20, 5, 3000)
	ctrl.Add(20, 5, 3000)
	// Only in control: negative window
	ctrl.Add(30, 7, 2000)
	// Below threshold
	exp.Add(40, 1, 500)

	windows, infos, err := DifferentialWindows(exp, ctrl, 1000)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	require.Len(t, infos, 2)

	require.Equal(t, 10, infos[0].MzBin)
	require.Equal(t, 0, infos[0].Index)
	require.InDelta(t, 105.0, infos[0].Mz, 1e-9)
	require.Equal(t, 3.0, infos[0].RT)
	require.Equal(t, 4000.0, infos[0].DiffMax)
	require.Equal(t, 5000.0, infos[0].ExpMax)
	require.Equal(t, 1000.0, infos[0].CtrlMax)
	require.Equal(t, 1.0, windows[0][3])
	require.Equal(t, 2500.0/4000.0, windows[0][4])

	require.Equal(t, 30, infos[1].MzBin)
	require.Equal(t, -2000.0, infos[1].DiffMax)
	require.Equal(t, -1.0, windows[1][7])
	for _, w := range windows {
		require.Len(t, w, testGrid.NumRT())
		for _, v := range w {
			require.False(t, math.Abs(v) > 1)
		}
	}

	other := testGrid
	other.RTMax = 20
	_, _, err = DifferentialWindows(exp, NewTraces("x", other), 0)
	require.ErrorIs(t, err, ErrGridMismatch)
}

func TestDifferentialWindowsMzJitter(t *testing.T) {
	grid := Grid{MzMin: 49, MzMax: 950, MzBin: 0.01, RTMin: 0, RTMax: 10, RTInterval: 1}
	bin := func(mz float64) int {
		i, ok := grid.MzIndex(mz)
		require.True(t, ok)
		return i
	}
	require.Equal(t, bin(150.004)+1, bin(150.006))

	// The same compound, one bin apart between the conditions
	exp := NewTraces("exp", grid)
	ctrl := NewTraces("ctrl", grid)
	exp.Add(bin(150.004), 3, 1e5)
	ctrl.Add(bin(150.006), 3, 1e5)
	windows, _, err := DifferentialWindows(exp, ctrl, 1000)
	require.NoError(t, err)
	require.Empty(t, windows)
	windows, _, err = DifferentialWindows(ctrl, exp, 1000)
	require.NoError(t, err)
	require.Empty(t, windows)

	// A real difference between neighbouring bins gives a single window
	exp = NewTraces("exp", grid)
	exp.Add(bin(150.004), 3, 2e5)
	windows, infos, err := DifferentialWindows(exp, ctrl, 1000)
	require.NoError(t, err)
	require.Len(t, windows, 1)
	require.Equal(t, bin(150.004), infos[0].MzBin)
	require.Equal(t, 1e5, infos[0].DiffMax)
	require.Equal(t, 1e5, infos[0].CtrlMax)
	require.Equal(t, 1.0, windows[0][3])

	// Two bins apart is not jitter
	exp = NewTraces("exp", grid)
	exp.Add(bin(150.004), 3, 1e5)
	ctrl = NewTraces("ctrl", grid)
	ctrl.Add(bin(150.004)+2, 3, 1e5)
	_, infos, err = DifferentialWindows(exp, ctrl, 1000)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	require.Equal(t, 1e5, infos[0].DiffMax)
	require.Equal(t, -1e5, infos[1].DiffMax)
}
