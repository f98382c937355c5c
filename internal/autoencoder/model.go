// Package autoencoder compresses differential windows into short encodings
// and clusters these encodings.
//
// The network has a single hidden layer: encoding = tanh(window*We + be),
// reconstruction = tanh(encoding*Wd + bd). Windows are normalized to
// [-1, 1], which matches the range of the decoder output.
package autoencoder

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/524D/lcmsdiff/internal/align"
	"github.com/524D/lcmsdiff/internal/cluster"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Version of the model file format
const outputFormatVersion = "1.0"

var (
	// ErrConfig means the model configuration is not usable
	ErrConfig = errors.New("autoencoder: invalid configuration")
	// ErrWindowLength means a window does not have the length the model was built for
	ErrWindowLength = errors.New("autoencoder: wrong window length")
	// ErrEncodingSize means an encoding does not have the model's encoding size
	ErrEncodingSize = errors.New("autoencoder: wrong encoding size")
	// ErrNoSamples means there was nothing to train on
	ErrNoSamples = errors.New("autoencoder: no samples")
	// ErrNotClustered means clusters are used before they were fit
	ErrNotClustered = errors.New("autoencoder: clusters have not been fit")
	// ErrLength means windows, encodings and window info differ in length
	ErrLength = errors.New("autoencoder: windows, encodings and window info differ in length")
	// ErrVersion means a model file was written by an incompatible version
	ErrVersion = errors.New("autoencoder: unsupported model file version")
	// ErrCorrupt means a model file has inconsistent shapes
	ErrCorrupt = errors.New("autoencoder: inconsistent model file")
)

// Config holds everything needed to rebuild the model and its input grid
type Config struct {
	WindowLength  int // Number of retention time bins per window
	EncodingSize  int
	ClusterNumber int

	MzMin      float64
	MzMax      float64
	MzBin      float64
	RTMin      float64
	RTMax      float64
	RTInterval float64
	Threshold  float64 // Minimum absolute differential intensity of a window

	Epochs       int
	BatchSize    int
	LearningRate float64
	Seed         int64
}

// Validate checks the sizes and training parameters
func (c Config) Validate() error {
	switch {
	case c.WindowLength < 1:
		return fmt.Errorf("%w: window length %d", ErrConfig, c.WindowLength)
	case c.EncodingSize < 1 || c.EncodingSize >= c.WindowLength:
		return fmt.Errorf("%w: encoding size %d must be in 1..%d",
			ErrConfig, c.EncodingSize, c.WindowLength-1)
	case c.ClusterNumber < 1:
		return fmt.Errorf("%w: cluster number %d", ErrConfig, c.ClusterNumber)
	case c.Epochs < 0:
		return fmt.Errorf("%w: epochs %d", ErrConfig, c.Epochs)
	case c.BatchSize < 1:
		return fmt.Errorf("%w: batch size %d", ErrConfig, c.BatchSize)
	case c.LearningRate <= 0:
		return fmt.Errorf("%w: learning rate %g", ErrConfig, c.LearningRate)
	}
	return nil
}

// Layer is a dense layer with tanh activation. W is stored row major,
// In rows by Out columns.
type Layer struct {
	In  int
	Out int
	W   []float64
	B   []float64
}

func newLayer(in, out int, rnd *rand.Rand) Layer {
	l := Layer{In: in, Out: out, W: make([]float64, in*out), B: make([]float64, out)}
	// Xavier uniform
	limit := math.Sqrt(6 / float64(in+out))
	for i := range l.W {
		l.W[i] = (2*rnd.Float64() - 1) * limit
	}
	return l
}

func (l *Layer) valid() bool {
	return l.In > 0 && l.Out > 0 && len(l.W) == l.In*l.Out && len(l.B) == l.Out
}

// weights shares its data with l.W
func (l *Layer) weights() *mat.Dense {
	return mat.NewDense(l.In, l.Out, l.W)
}

func (l *Layer) forward(x mat.Matrix) *mat.Dense {
	var a mat.Dense
	a.Mul(x, l.weights())
	a.Apply(func(_, j int, v float64) float64 {
		return math.Tanh(v + l.B[j])
	}, &a)
	return &a
}

// backward stores the gradients of the loss with respect to W and B in gW
// and gB and returns the gradient with respect to the input x. a is the
// output of forward(x), dA the gradient with respect to a.
func (l *Layer) backward(x mat.Matrix, a, dA *mat.Dense, gW, gB []float64) *mat.Dense {
	var dZ mat.Dense
	dZ.Apply(func(i, j int, v float64) float64 {
		y := a.At(i, j)
		return v * (1 - y*y)
	}, dA)
	mat.NewDense(l.In, l.Out, gW).Mul(x.T(), &dZ)
	rows, _ := dZ.Dims()
	for j := range gB {
		gB[j] = 0
		for i := 0; i < rows; i++ {
			gB[j] += dZ.At(i, j)
		}
	}
	var dX mat.Dense
	dX.Mul(&dZ, l.weights().T())
	return &dX
}

// Model is an autoencoder plus the k-means clusters of its encodings
type Model struct {
	// Version of the model file format
	LcmsDiffVersion string
	Config          Config
	Encoder         Layer
	Decoder         Layer
	Centroids       cluster.Centroids `json:",omitempty"`
	Loss            []float64         `json:",omitempty"` // Mean loss per training epoch

	outDir string
	// Windows and clusters of the last PredictClusters call
	lastWindows [][]float64
	lastAssign  []int
}

// New creates an untrained model that writes its output to outputDir
func New(outputDir string, cfg Config) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	rnd := rand.New(rand.NewSource(cfg.Seed))
	return &Model{
		LcmsDiffVersion: outputFormatVersion,
		Config:          cfg,
		Encoder:         newLayer(cfg.WindowLength, cfg.EncodingSize, rnd),
		Decoder:         newLayer(cfg.EncodingSize, cfg.WindowLength, rnd),
		outDir:          outputDir,
	}, nil
}

// SetOutputDirectory sets the directory that results and plots are written to
func (m *Model) SetOutputDirectory(dir string) {
	m.outDir = dir
}

// OutputDirectory returns the directory that results and plots are written to
func (m *Model) OutputDirectory() string {
	return m.outDir
}

// Grid returns the m/z and retention time grid of the model's input
func (m *Model) Grid() align.Grid {
	return align.Grid{
		MzMin:      m.Config.MzMin,
		MzMax:      m.Config.MzMax,
		MzBin:      m.Config.MzBin,
		RTMin:      m.Config.RTMin,
		RTMax:      m.Config.RTMax,
		RTInterval: m.Config.RTInterval,
	}
}

// Clustered reports whether clusters have been fit
func (m *Model) Clustered() bool {
	return len(m.Centroids) > 0
}

func toDense(rows [][]float64, cols int, errLength error) (*mat.Dense, error) {
	d := mat.NewDense(len(rows), cols, nil)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("%w: row %d has length %d, want %d", errLength, i, len(r), cols)
		}
		d.SetRow(i, r)
	}
	return d, nil
}

func fromDense(d *mat.Dense) [][]float64 {
	rows, cols := d.Dims()
	out := make([][]float64, rows)
	for i := range out {
		out[i] = mat.Row(make([]float64, cols), i, d)
	}
	return out
}

// Predict returns the encoding of each window
func (m *Model) Predict(windows [][]float64) ([][]float64, error) {
	if len(windows) == 0 {
		return [][]float64{}, nil
	}
	x, err := toDense(windows, m.Config.WindowLength, ErrWindowLength)
	if err != nil {
		return nil, err
	}
	return fromDense(m.Encoder.forward(x)), nil
}

// Decode returns the window reconstructed from each encoding
func (m *Model) Decode(encodings [][]float64) ([][]float64, error) {
	if len(encodings) == 0 {
		return [][]float64{}, nil
	}
	h, err := toDense(encodings, m.Config.EncodingSize, ErrEncodingSize)
	if err != nil {
		return nil, err
	}
	return fromDense(m.Decoder.forward(h)), nil
}

// Reconstruct encodes and decodes windows
func (m *Model) Reconstruct(windows [][]float64) ([][]float64, error) {
	enc, err := m.Predict(windows)
	if err != nil {
		return nil, err
	}
	return m.Decode(enc)
}

// ReconstructionError returns the mean squared difference between windows
// and their reconstruction
func (m *Model) ReconstructionError(windows [][]float64) (float64, error) {
	if len(windows) == 0 {
		return 0, ErrNoSamples
	}
	x, err := toDense(windows, m.Config.WindowLength, ErrWindowLength)
	if err != nil {
		return 0, err
	}
	loss, _ := mseLoss(m.Decoder.forward(m.Encoder.forward(x)), x)
	return loss, nil
}

// mseLoss returns the mean squared error of y with respect to x, and the
// gradient of that loss with respect to y
func mseLoss(y, x *mat.Dense) (float64, *mat.Dense) {
	rows, cols := y.Dims()
	n := float64(rows * cols)
	var d mat.Dense
	d.Sub(y, x)
	raw := d.RawMatrix().Data
	loss := floats.Dot(raw, raw) / n
	d.Scale(2/n, &d)
	return loss, &d
}
