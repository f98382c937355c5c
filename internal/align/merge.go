package align

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/524D/lcmsdiff/internal/mzml"
	"github.com/carbocation/pfx"
)

// Opener opens the LCMS file of a sample in a plate directory
type Opener interface {
	Open(ctx context.Context, dir, sample string) (io.ReadCloser, string, error)
}

// Software is recorded in the software list of merged mzML files
var Software = struct{ Name, Version string }{"lcmsdiff", "Unknown"}

// Data processing step recorded in merged mzML files
var mergeProcessing = mzml.DataProcessing{
	ID: "replicate_merge",
	ProcessingMeth: []mzml.ProcessingMethod{
		{
			Count:       0,
			SoftwareRef: "lcmsdiff",
			CvPar: []mzml.CVParam{
				{
					Accession: `MS:1000780`,
					Name:      `data transformation`,
				},
			},
		},
	},
}

// ReadReplicate opens and bins a single sample
func ReadReplicate(ctx context.Context, opener Opener, grid Grid, dir, sample string) (*Traces, error) {
	r, name, err := opener.Open(ctx, dir, sample)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	ms, err := mzml.Read(r)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", name, err))
	}
	t, err := LoadReplicate(&ms, sample, grid)
	if err != nil {
		return nil, pfx.Err(fmt.Errorf("%s: %w", name, err))
	}
	return t, nil
}

// MergeReplicates reads all samples of one condition and merges them into
// a single set of traces labeled label. If outDir is not empty, the merged
// traces are also written to <outDir>/<label>.mzML. No samples results in
// empty traces.
func MergeReplicates(ctx context.Context, opener Opener, grid Grid, dir, outDir string,
	samples []string, label string) (*Traces, error) {
	if err := grid.Validate(); err != nil {
		return nil, err
	}
	replicates := make([]*Traces, 0, len(samples))
	for _, sample := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := ReadReplicate(ctx, opener, grid, dir, sample)
		if err != nil {
			return nil, err
		}
		replicates = append(replicates, t)
	}
	merged, err := Merge(label, grid, replicates...)
	if err != nil {
		return nil, err
	}
	if outDir != "" {
		if err := WriteTraces(filepath.Join(outDir, label+".mzML"), merged); err != nil {
			return nil, err
		}
	}
	return merged, nil
}

// Merge combines replicate traces conservatively: the merged intensity is
// the minimum over all replicates, so signal must be present in every
// replicate. The first replicate is the reference; in the others the
// neighbouring m/z bins are also considered, to tolerate m/z jitter of one
// bin between runs.
func Merge(label string, grid Grid, replicates ...*Traces) (*Traces, error) {
	merged := NewTraces(label, grid)
	if len(replicates) == 0 {
		return merged, nil
	}
	for _, r := range replicates {
		if r.Grid != grid {
			return nil, ErrGridMismatch
		}
	}
	ref := replicates[0]
	for _, r := range replicates {
		merged.Runs = append(merged.Runs, r.Runs...)
	}
	for _, b := range ref.Bins() {
		tr := make([]float64, grid.NumRT())
		copy(tr, ref.Trace(b))
		present := true
		for _, r := range replicates[1:] {
			n := r.near(b, true)
			if n == nil {
				present = false
				break
			}
			for i := range tr {
				if n[i] < tr[i] {
					tr[i] = n[i]
				}
			}
		}
		if !present {
			continue
		}
		for i, v := range tr {
			merged.Add(b, i, v)
		}
	}
	return merged, nil
}

// WriteTraces writes traces as an mzML file
func WriteTraces(name string, t *Traces) error {
	ms, err := t.MzML()
	if err != nil {
		return err
	}
	ms.AppendSoftwareInfo(Software.Name, Software.Version)
	ms.AppendDataProcessing(mergeProcessing)

	f, err := os.Create(name)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()
	if err := ms.Write(f); err != nil {
		return pfx.Err(fmt.Errorf("%s: %w", name, err))
	}
	return f.Close()
}
