package autoencoder

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

// Adam parameters that are not configurable
const (
	adamBeta1   = 0.9
	adamBeta2   = 0.999
	adamEpsilon = 1e-8
)

type adam struct {
	rate float64
	t    int
	m    [][]float64
	v    [][]float64
}

func newAdam(rate float64, params [][]float64) *adam {
	a := &adam{rate: rate}
	for _, p := range params {
		a.m = append(a.m, make([]float64, len(p)))
		a.v = append(a.v, make([]float64, len(p)))
	}
	return a
}

func (a *adam) update(params, grads [][]float64) {
	a.t++
	c1 := 1 - math.Pow(adamBeta1, float64(a.t))
	c2 := 1 - math.Pow(adamBeta2, float64(a.t))
	for k, p := range params {
		m, v, g := a.m[k], a.v[k], grads[k]
		for i := range p {
			m[i] = adamBeta1*m[i] + (1-adamBeta1)*g[i]
			v[i] = adamBeta2*v[i] + (1-adamBeta2)*g[i]*g[i]
			p[i] -= a.rate * (m[i] / c1) / (math.Sqrt(v[i]/c2) + adamEpsilon)
		}
	}
}

func (m *Model) params() [][]float64 {
	return [][]float64{m.Encoder.W, m.Encoder.B, m.Decoder.W, m.Decoder.B}
}

func newGrads(params [][]float64) [][]float64 {
	grads := make([][]float64, len(params))
	for i, p := range params {
		grads[i] = make([]float64, len(p))
	}
	return grads
}

// gradients computes the loss of batch x and stores the gradients of all
// parameters in grads, in the order of params()
func (m *Model) gradients(x *mat.Dense, grads [][]float64) float64 {
	h := m.Encoder.forward(x)
	y := m.Decoder.forward(h)
	loss, dY := mseLoss(y, x)
	dH := m.Decoder.backward(h, y, dY, grads[2], grads[3])
	m.Encoder.backward(x, h, dH, grads[0], grads[1])
	return loss
}

// Train fits the autoencoder to windows with mini-batch Adam. The mean loss
// of every epoch is appended to Loss.
func (m *Model) Train(windows [][]float64) error {
	if len(windows) == 0 {
		return ErrNoSamples
	}
	x, err := toDense(windows, m.Config.WindowLength, ErrWindowLength)
	if err != nil {
		return err
	}
	n := len(windows)
	rnd := rand.New(rand.NewSource(m.Config.Seed))
	params := m.params()
	grads := newGrads(params)
	opt := newAdam(m.Config.LearningRate, params)

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	for epoch := 0; epoch < m.Config.Epochs; epoch++ {
		rnd.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
		var sum float64
		for start := 0; start < n; start += m.Config.BatchSize {
			end := min(start+m.Config.BatchSize, n)
			batch := mat.NewDense(end-start, m.Config.WindowLength, nil)
			for i, idx := range order[start:end] {
				batch.SetRow(i, x.RawRowView(idx))
			}
			sum += m.gradients(batch, grads) * float64(end-start)
			opt.update(params, grads)
		}
		m.Loss = append(m.Loss, sum/float64(n))
	}
	return nil
}
