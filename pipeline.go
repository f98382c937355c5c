package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/524D/lcmsdiff/internal/align"
	"github.com/524D/lcmsdiff/internal/autoencoder"
	"github.com/aybabtme/uniplot/histogram"
	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/stat"
)

// ErrNoWindows means no m/z bin differs enough between the conditions
var ErrNoWindows = errors.New("no valid differential windows, nothing to train or cluster")

// Run summary, written as JSON with sorted keys
type summary map[string]any

type debugInfo struct {
	ClusterSizes        []int
	TrainingLoss        []float64 `json:",omitempty"`
	ReconstructionError float64
	DiffMaxQuantiles    map[string]float64 // Quantiles of the absolute differential maxima
}

func newSummary(par params) summary {
	s := summary{
		"lcmsDirectory":   *par.lcmsDirectory,
		"experimental":    *par.experimental,
		"control":         *par.control,
		"outputDirectory": *par.outputDirectory,
		"encodingSize":    *par.encodingSize,
		"clusterNumber":   *par.clusterNumber,
		"mzMin":           *par.mzMin,
		"mzMax":           *par.mzMax,
		"mzBin":           *par.mzBin,
		"rt":              *par.rtRange,
		"rtInterval":      *par.rtInterval,
		"threshold":       *par.threshold,
		"epochs":          *par.epochs,
		"batchSize":       *par.batchSize,
		"learningRate":    *par.learningRate,
		"seed":            *par.seed,
	}
	s["previousModelLocation"] = nil
	if *par.previousModelLocation != "" {
		s["previousModelLocation"] = *par.previousModelLocation
	}
	return s
}

func writeSummary(name string, s summary) error {
	f, err := os.Create(name)
	if err != nil {
		return pfx.Err(err)
	}
	defer f.Close()
	e := json.NewEncoder(f)
	e.SetIndent(``, `    `)
	if err := e.Encode(s); err != nil {
		return pfx.Err(err)
	}
	return f.Close()
}

// loadOrCreateModel loads the previous model if it exists. Otherwise a new
// model is made from the parameters. The returned bool is true for a new
// model.
func loadOrCreateModel(par params) (*autoencoder.Model, bool, error) {
	if loc := *par.previousModelLocation; loc != "" {
		_, err := os.Stat(loc)
		if err == nil {
			if par.verbosity != infoSilent {
				fmt.Fprintf(os.Stderr, "Using previously created model at %s\n", loc)
			}
			m, err := autoencoder.Load(loc)
			if err != nil {
				return nil, false, err
			}
			m.SetOutputDirectory(*par.outputDirectory)
			return m, false, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return nil, false, pfx.Err(err)
		}
	}
	grid := align.Grid{
		MzMin:      *par.mzMin,
		MzMax:      *par.mzMax,
		MzBin:      *par.mzBin,
		RTMin:      par.rtMin,
		RTMax:      par.rtMax,
		RTInterval: *par.rtInterval,
	}
	if err := grid.Validate(); err != nil {
		return nil, false, err
	}
	cfg := autoencoder.Config{
		WindowLength:  grid.NumRT(),
		EncodingSize:  *par.encodingSize,
		ClusterNumber: *par.clusterNumber,
		MzMin:         grid.MzMin,
		MzMax:         grid.MzMax,
		MzBin:         grid.MzBin,
		RTMin:         grid.RTMin,
		RTMax:         grid.RTMax,
		RTInterval:    grid.RTInterval,
		Threshold:     *par.threshold,
		Epochs:        *par.epochs,
		BatchSize:     *par.batchSize,
		LearningRate:  *par.learningRate,
		Seed:          *par.seed,
	}
	m, err := autoencoder.New(*par.outputDirectory, cfg)
	return m, true, err
}

// runDifferential merges the replicates of both conditions, makes the
// differential windows and clusters them. A new model is trained, its
// clusters are plotted and it is saved. A previous model is only used for
// prediction.
func runDifferential(ctx context.Context, par params, opener align.Opener) error {
	outDir := *par.outputDirectory
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return pfx.Err(err)
	}
	sum := newSummary(par)

	model, isNew, err := loadOrCreateModel(par)
	if err != nil {
		return err
	}
	modelLocation := filepath.Join(outDir, modelName)
	if !isNew {
		modelLocation = *par.previousModelLocation
	}
	sum["model_location"] = modelLocation
	// A previous model overrules the grid and training parameters given
	// on the command line
	sum["model_config"] = model.Config
	grid := model.Grid()

	t := time.Now()
	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "Merging %d experimental replicates: ", len(*par.experimental))
	}
	exp, err := align.MergeReplicates(ctx, opener, grid, *par.lcmsDirectory, outDir,
		*par.experimental, expLabel)
	if err != nil {
		return err
	}
	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "%s\n", time.Since(t))
		printRunStats(exp.Runs)
		t = time.Now()
		fmt.Fprintf(os.Stderr, "Merging %d control replicates: ", len(*par.control))
	}
	ctrl, err := align.MergeReplicates(ctx, opener, grid, *par.lcmsDirectory, outDir,
		*par.control, ctrlLabel)
	if err != nil {
		return err
	}
	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "%s\n", time.Since(t))
		printRunStats(ctrl.Runs)
		t = time.Now()
		fmt.Fprintf(os.Stderr, "Creating differential windows: ")
	}

	windows, aux, err := align.DifferentialWindows(exp, ctrl, model.Config.Threshold)
	if err != nil {
		return err
	}
	sum["number_of_valid_windows"] = len(windows)
	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "%s\n", time.Since(t))
	}
	if par.verbosity != infoSilent {
		fmt.Fprintf(os.Stderr, "m/z bins experimental: %d control: %d valid windows: %d\n",
			exp.Len(), ctrl.Len(), len(windows))
	}
	if len(windows) == 0 {
		return ErrNoWindows
	}
	if par.verbosity == infoVerbose {
		printDiffHistogram(aux)
	}

	if isNew {
		if par.verbosity == infoVerbose {
			t = time.Now()
			fmt.Fprintf(os.Stderr, "Training autoencoder: ")
		}
		if err := model.Train(windows); err != nil {
			return err
		}
		if par.verbosity == infoVerbose {
			fmt.Fprintf(os.Stderr, "%s\n", time.Since(t))
		}
	}
	encodings, err := model.Predict(windows)
	if err != nil {
		return err
	}
	if isNew {
		if err := model.FitClusters(encodings); err != nil {
			return err
		}
	}
	assign, err := model.PredictClusters(encodings, windows, aux, analysisName, dropRT)
	if err != nil {
		return err
	}
	debugLogWindows(windows, aux, assign)
	if par.verbosity == infoVerbose {
		fmt.Fprintf(os.Stderr, "Windows per cluster: %v\n", model.ClusterSizes())
	}
	if isNew {
		if par.verbosity == infoVerbose {
			t = time.Now()
			fmt.Fprintf(os.Stderr, "Plotting clusters: ")
		}
		if err := model.Visualize(analysisName, plotLowerAxis); err != nil {
			return err
		}
		if par.verbosity == infoVerbose {
			fmt.Fprintf(os.Stderr, "%s\n", time.Since(t))
		}
	}

	if par.debug {
		di, err := makeDebugInfo(model, windows, aux)
		if err != nil {
			return err
		}
		sum["debug_info"] = di
	}
	if err := writeSummary(filepath.Join(outDir, summaryName), sum); err != nil {
		return err
	}
	if isNew {
		if err := model.Save(modelLocation); err != nil {
			return err
		}
	}
	return nil
}

func printRunStats(runs []align.RunStats) {
	for _, r := range runs {
		fmt.Fprintf(os.Stderr, "  %s: %d spectra, %d MS1 in rt range, TIC %.4g\n",
			r.Sample, r.Spectra, r.MS1, r.TIC)
		if r.Profile > 0 {
			fmt.Fprintf(os.Stderr, "  %s: %d profile spectra, peaks are binned without centroiding\n",
				r.Sample, r.Profile)
		}
	}
}

func absDiffMax(aux []align.WindowInfo) []float64 {
	d := make([]float64, len(aux))
	for i, a := range aux {
		d[i] = math.Abs(a.DiffMax)
	}
	sort.Float64s(d)
	return d
}

func makeDebugInfo(model *autoencoder.Model, windows [][]float64, aux []align.WindowInfo) (debugInfo, error) {
	recErr, err := model.ReconstructionError(windows)
	if err != nil {
		return debugInfo{}, err
	}
	d := absDiffMax(aux)
	q := make(map[string]float64)
	for _, p := range []float64{0.01, 0.5, 0.99} {
		q[fmt.Sprintf("%g", p)] = stat.Quantile(p, stat.LinInterp, d, nil)
	}
	return debugInfo{
		ClusterSizes:        model.ClusterSizes(),
		TrainingLoss:        model.Loss,
		ReconstructionError: recErr,
		DiffMaxQuantiles:    q,
	}, nil
}

// printDiffHistogram shows the distribution of the differential maxima of
// the windows on a log scale
func printDiffHistogram(aux []align.WindowInfo) {
	d := absDiffMax(aux)
	for i := range d {
		d[i] = math.Log10(d[i])
	}
	fmt.Fprintf(os.Stderr, "log10 |differential maximum|, median %.2f:\n",
		stat.Quantile(0.5, stat.Empirical, d, nil))
	hist := histogram.Hist(20, d)
	if err := histogram.Fprint(os.Stderr, hist, histogram.Linear(40)); err != nil {
		fmt.Fprintf(os.Stderr, "histogram: %v\n", err)
	}
}
