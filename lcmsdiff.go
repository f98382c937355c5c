// Copyright 2018 Rob Marissen.
// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/524D/lcmsdiff/internal/align"
	"github.com/524D/lcmsdiff/internal/config"
	"github.com/524D/lcmsdiff/internal/lcmsio"

	flag "github.com/spf13/pflag"
)

// Program name and version, appended to software list in mzML output
const progName = "lcmsdiff"

var progVersion = `Unknown`

// Names of the files written to the output directory
const (
	analysisName = "differential_expression"
	summaryName  = analysisName + "_run_summary.json"
	modelName    = analysisName + ".model"
	expLabel     = "experimental_condition"
	ctrlLabel    = "ctrl_condition"
)

// Lower limit of the y axis of cluster plots. Windows are normalized to
// [-1, 1].
const plotLowerAxis = -1

// Windows with a retention time below dropRT are left out of the results
const dropRT = 0

const (
	infoDefault = iota
	infoSilent
	infoVerbose
)

// Command line parameters
type params struct {
	lcmsDirectory         *string   // LCMS plate directory, local or gs://bucket/prefix
	experimental          *[]string // Names of experimental samples
	control               *[]string // Names of control samples
	outputDirectory       *string
	previousModelLocation *string
	encodingSize          *int
	clusterNumber         *int
	mzMin                 *float64
	mzMax                 *float64
	mzBin                 *float64
	rtRange               *string // retention time range in seconds
	rtMin                 float64 // lower boundary of rtRange
	rtMax                 float64 // upper boundary of rtRange
	rtInterval            *float64
	threshold             *float64 // minimum absolute differential intensity of a window
	epochs                *int
	batchSize             *int
	learningRate          *float64
	seed                  *int64
	configFile            *string
	verbosity             int  // Verbosity of progress messages (infoDefault...)
	debug                 bool // Enable debug info (environment variable LCMSDIFF_DEBUG=1)
}

var ErrRangeSpec = errors.New("invalid range specified")

// Parse string like "-12:6" into 2 values, -12 and 6
// Parameters min and max are the "default" min/max values,
// when a value is not specified (e.g. "-12:"), the default is assigned
func parseIntRange(r string, min int, max int) (int, int, error) {
	re := regexp.MustCompile(`\s*(\-?\d*):(\-?\d*)`)
	m := re.FindStringSubmatch(r)
	minOut := min
	maxOut := max
	if len(m) >= 2 && m[1] != "" {
		minOut, _ = strconv.Atoi(m[1])
		if minOut < min {
			minOut = min
		}
	}
	if len(m) >= 3 && m[2] != "" {
		maxOut, _ = strconv.Atoi(m[2])
		if maxOut > max {
			maxOut = max
		}
	}
	var err error
	if minOut > maxOut {
		err = ErrRangeSpec
		minOut = maxOut
	}
	return minOut, maxOut, err
}

// Parse string like "-12.01e1:+6" into 2 values, -120.1 and 6.0
// Parameters min and max are the "default" min/max values,
// when a value is not specified (e.g. "-12.01e1:"), the default is assigned
func parseFloat64Range(r string, min float64, max float64) (
	float64, float64, error) {
	re := regexp.MustCompile(`\s*([-+]?[0-9]*\.?[0-9]*([eE][-+]?[0-9]+)?):([-+]?[0-9]*\.?[0-9]*([eE][-+]?[0-9]+)?)`)
	m := re.FindStringSubmatch(r)
	minOut := min
	maxOut := max
	if len(m) >= 2 && m[1] != "" {
		minOut, _ = strconv.ParseFloat(m[1], 64)
		if minOut < min {
			minOut = min
		}
	}
	if len(m) >= 4 && m[3] != "" {
		maxOut, _ = strconv.ParseFloat(m[3], 64)
		if maxOut > max {
			maxOut = max
		}
	}
	var err error
	if minOut > maxOut {
		err = ErrRangeSpec
		minOut = maxOut
	}
	return minOut, maxOut, err
}

// newParams registers the command line flags in fs
func newParams(fs *flag.FlagSet) params {
	var par params
	par.lcmsDirectory = fs.String("lcmsDirectory", "",
		"LCMS plate `directory`, local or gs://bucket/prefix")
	par.experimental = fs.StringSlice("experimental", nil,
		"`names` of experimental samples, comma separated or repeated")
	par.control = fs.StringSlice("control", nil,
		"`names` of control samples, comma separated or repeated")
	par.outputDirectory = fs.String("outputDirectory", "",
		"`directory` where all intermediate and final files are written")
	par.previousModelLocation = fs.String("previousModelLocation", "",
		"`filename` of a previously created model. If it exists, the model is\nused for prediction only")
	par.encodingSize = fs.IntP("encodingSize", "e", 10,
		"size of the encoding layer")
	par.clusterNumber = fs.IntP("clusterNumber", "c", 50,
		"number of k-means clusters")
	par.mzMin = fs.Float64P("mzMin", "n", 49,
		"lowest m/z value")
	par.mzMax = fs.Float64P("mzMax", "x", 950,
		"highest m/z value")
	par.mzBin = fs.Float64("mzBin", 0.01,
		"width of m/z bins")
	par.rtRange = fs.String("rt", "0:450",
		"retention time `range` in seconds")
	par.rtInterval = fs.Float64("rtInterval", 0.2,
		"width of retention time bins in seconds")
	par.threshold = fs.Float64("threshold", 1000,
		"minimum absolute differential intensity of a window")
	par.epochs = fs.Int("epochs", 30,
		"number of training epochs")
	par.batchSize = fs.Int("batchSize", 32,
		"training batch size")
	par.learningRate = fs.Float64("learningRate", 0.001,
		"training learning rate")
	par.seed = fs.Int64("seed", 1,
		"seed for weight initialization, shuffling and clustering")
	par.configFile = fs.String("config", "",
		"HCL run `file` with parameters. Flags on the command line take precedence")
	return par
}

// applyRunFile copies parameters from the run file that were not set on
// the command line
func applyRunFile(fs *flag.FlagSet, par *params, rf *config.RunFile) {
	setString := func(name string, dst *string, src *string) {
		if src != nil && !fs.Changed(name) {
			*dst = *src
		}
	}
	setFloat := func(name string, dst *float64, src *float64) {
		if src != nil && !fs.Changed(name) {
			*dst = *src
		}
	}
	setInt := func(name string, dst *int, src *int) {
		if src != nil && !fs.Changed(name) {
			*dst = *src
		}
	}
	setString("lcmsDirectory", par.lcmsDirectory, rf.LcmsDirectory)
	setString("outputDirectory", par.outputDirectory, rf.OutputDirectory)
	setString("previousModelLocation", par.previousModelLocation, rf.PreviousModelLocation)
	setString("rt", par.rtRange, rf.RT)
	if rf.Experimental != nil && !fs.Changed("experimental") {
		*par.experimental = rf.Experimental
	}
	if rf.Control != nil && !fs.Changed("control") {
		*par.control = rf.Control
	}
	setInt("encodingSize", par.encodingSize, rf.EncodingSize)
	setInt("clusterNumber", par.clusterNumber, rf.ClusterNumber)
	setInt("epochs", par.epochs, rf.Epochs)
	setInt("batchSize", par.batchSize, rf.BatchSize)
	setFloat("mzMin", par.mzMin, rf.MzMin)
	setFloat("mzMax", par.mzMax, rf.MzMax)
	setFloat("mzBin", par.mzBin, rf.MzBin)
	setFloat("rtInterval", par.rtInterval, rf.RTInterval)
	setFloat("threshold", par.threshold, rf.Threshold)
	setFloat("learningRate", par.learningRate, rf.LearningRate)
	if rf.Seed != nil && !fs.Changed("seed") {
		*par.seed = int64(*rf.Seed)
	}
}

func usageError(msg string) {
	exeName := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr, `%s
Type %s --help for usage
`, msg, exeName)
	os.Exit(2)
}

// sanatizeParams does some checks on parameters and exits when they
// can't be used
func sanatizeParams(par *params) {
	if err := checkParams(par); err != nil {
		usageError(err.Error())
	}
}

// checkParams returns an error for the first parameter that can't be used,
// and sets the parsed rt range
func checkParams(par *params) error {
	if *par.lcmsDirectory == "" {
		return errors.New("Parameter 'lcmsDirectory' is required.")
	}
	if *par.outputDirectory == "" {
		return errors.New("Parameter 'outputDirectory' is required.")
	}
	if len(*par.experimental) == 0 {
		return errors.New("At least one experimental sample is required.")
	}
	if *par.mzMin >= *par.mzMax {
		return errors.New("Parameter 'mzMin' must be lower than 'mzMax'.")
	}
	if *par.mzBin <= 0 {
		return errors.New("Parameter 'mzBin' must be positive.")
	}
	var err error
	par.rtMin, par.rtMax, err = parseFloat64Range(*par.rtRange, 0, math.MaxFloat64)
	if err != nil || par.rtMax == math.MaxFloat64 {
		return errors.New("Invalid rt range.")
	}
	if *par.rtInterval <= 0 || *par.rtInterval > par.rtMax-par.rtMin {
		return errors.New("Invalid value for parameter 'rtInterval'.")
	}
	if *par.encodingSize < 1 || *par.clusterNumber < 1 {
		return errors.New("Parameters 'encodingSize' and 'clusterNumber' must be positive.")
	}
	if *par.epochs < 0 || *par.batchSize < 1 || *par.learningRate <= 0 {
		return errors.New("Invalid training parameters.")
	}
	return nil
}

func usage() {
	exeName := filepath.Base(os.Args[0])
	fmt.Fprintf(os.Stderr,
		`USAGE:
  %s [options]

  This program finds the ion traces that differ between experimental and
  control LCMS samples, and clusters them by the shape of the difference.
  Replicates of each condition are merged, a window of experimental minus
  control intensity is made for every m/z bin, windows are compressed by an
  autoencoder and the encodings are clustered with k-means.

OPTIONS:
`, exeName)
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr,
		`
OUTPUT FILES (in outputDirectory):
  experimental_condition.mzML, ctrl_condition.mzML  merged replicates
  %s.tsv                           cluster of every window
  %s_clusters/cluster_NNN.png      cluster plots (new models only)
  %s
  %s                         (new models only)

ENVIRONMENT VARIABLES:
    When environment variable LCMSDIFF_DEBUG=1, extra information is added to the
    JSON run summary.

USAGE EXAMPLES:
  %s --lcmsDirectory plate1 --experimental e1,e2 --control c1,c2 --outputDirectory out
    Train a new model on samples e1 and e2 against c1 and c2 in directory plate1.

  %s --lcmsDirectory gs://bucket/plate2 --experimental e3 --control c3 \
     --outputDirectory out2 --previousModelLocation out/%s
    Cluster the differences of plate2 with the model made in the first example.
`, analysisName, analysisName, summaryName, modelName, exeName, exeName, modelName)
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	par := newParams(flag.CommandLine)
	version := flag.Bool("version", false,
		`Show software version`)
	verbose := flag.Bool("verbose", false,
		`Print more verbose progress information`)
	quiet := flag.Bool("quiet", false,
		`Don't print any output except for errors`)
	flag.Usage = usage
	flag.Parse()
	if *version {
		fmt.Fprintf(os.Stderr, "%s version %s\n", progName, progVersion)
		return
	}
	if *par.configFile != "" {
		rf, err := config.Load(*par.configFile)
		if err != nil {
			log.Fatalf("config.Load: %v", err)
		}
		applyRunFile(flag.CommandLine, &par, rf)
	}
	if *verbose {
		par.verbosity = infoVerbose
	}
	if *quiet {
		par.verbosity = infoSilent
	}
	// Check if debug output should be enabled
	par.debug = os.Getenv("LCMSDIFF_DEBUG") == `1`

	sanatizeParams(&par)
	align.Software.Name = progName
	align.Software.Version = progVersion

	store := lcmsio.NewStore()
	defer store.Close()

	ctx := context.Background()
	if err := runDifferential(ctx, par, store); err != nil {
		if errors.Is(err, lcmsio.ErrSampleNotFound) {
			if names, lerr := store.List(ctx, *par.lcmsDirectory); lerr == nil {
				log.Printf("Samples in %s: %s", *par.lcmsDirectory, strings.Join(names, ", "))
			}
		}
		log.Fatalf("%v", err)
	}
}
