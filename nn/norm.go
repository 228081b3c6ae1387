package nn

import (
	"fmt"
	"lyrics-lab/errors"
	"lyrics-lab/tensor"
	"math"
	"math/rand/v2"
)

const layerNormEpsilon = 1e-3

// LayerNorm normalizes the channels of every step independently, then applies a
// learned gain and offset. Unlike batch normalization it needs no batch statistics.
type LayerNorm struct {
	name  string
	steps int
	ch    int
	gamma *Param
	beta  *Param
}

func NewLayerNorm(name string) *LayerNorm {
	return &LayerNorm{name: name}
}

func (l *LayerNorm) Name() string { return l.name }
func (l *LayerNorm) Type() string { return "LayerNormalization" }

func (l *LayerNorm) Build(in Shape, _ *rand.Rand, alloc *tensor.Group) (Shape, error) {
	if in.Channels < 2 {
		return Shape{}, fmt.Errorf("%w: %s needs at least 2 channels", errors.ErrInvalidArchitecture, l.name)
	}
	l.steps, l.ch = in.Steps, in.Channels
	gamma, err := newParam(alloc, l.name+"/gamma", l.ch)
	if err != nil {
		return Shape{}, err
	}
	for i := range gamma.Value.Data() {
		gamma.Value.Data()[i] = 1
	}
	beta, err := newParam(alloc, l.name+"/beta", l.ch)
	if err != nil {
		return Shape{}, err
	}
	l.gamma, l.beta = gamma, beta
	return in, nil
}

func (l *LayerNorm) Params() []*Param { return []*Param{l.gamma, l.beta} }

// ScratchSize keeps the normalized activations followed by one inverse deviation per step.
func (l *LayerNorm) ScratchSize(in Shape) int { return in.Size() + in.Steps }

func (l *LayerNorm) Forward(_ Context, in, out, scratch []float64) {
	gamma, beta := l.gamma.Value.Data(), l.beta.Value.Data()
	xhat, inv := scratch[:l.steps*l.ch], scratch[l.steps*l.ch:]
	n := float64(l.ch)
	for t := 0; t < l.steps; t++ {
		x := in[t*l.ch : (t+1)*l.ch]
		mean := 0.0
		for _, v := range x {
			mean += v
		}
		mean /= n
		variance := 0.0
		for _, v := range x {
			variance += (v - mean) * (v - mean)
		}
		variance /= n
		inv[t] = 1 / math.Sqrt(variance+layerNormEpsilon)
		for c, v := range x {
			xh := (v - mean) * inv[t]
			xhat[t*l.ch+c] = xh
			out[t*l.ch+c] = gamma[c]*xh + beta[c]
		}
	}
}

func (l *LayerNorm) Backward(_ Context, _, _, scratch, dOut, dIn []float64, grads [][]float64) {
	gamma := l.gamma.Value.Data()
	gGamma, gBeta := grads[0], grads[1]
	xhat, inv := scratch[:l.steps*l.ch], scratch[l.steps*l.ch:]
	n := float64(l.ch)
	for t := 0; t < l.steps; t++ {
		sum, sumXhat := 0.0, 0.0
		for c := 0; c < l.ch; c++ {
			i := t*l.ch + c
			gGamma[c] += dOut[i] * xhat[i]
			gBeta[c] += dOut[i]
			dx := dOut[i] * gamma[c]
			sum += dx
			sumXhat += dx * xhat[i]
		}
		if dIn == nil {
			continue
		}
		for c := 0; c < l.ch; c++ {
			i := t*l.ch + c
			dx := dOut[i] * gamma[c]
			dIn[i] += inv[t] / n * (n*dx - sum - xhat[i]*sumXhat)
		}
	}
}
