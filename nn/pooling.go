package nn

import (
	"fmt"
	"lyrics-lab/errors"
	"lyrics-lab/tensor"
	"math/rand/v2"
)

// MaxPool1D downsamples steps by taking the maximum of each window of size pool.
// Trailing steps that do not fill a window are dropped.
type MaxPool1D struct {
	name string
	pool int
	ch   int
	outT int
}

func NewMaxPool1D(name string, pool int) *MaxPool1D {
	return &MaxPool1D{name: name, pool: pool}
}

func (l *MaxPool1D) Name() string { return l.name }
func (l *MaxPool1D) Type() string { return "MaxPooling1D" }

func (l *MaxPool1D) Build(in Shape, _ *rand.Rand, _ *tensor.Group) (Shape, error) {
	if l.pool <= 0 {
		return Shape{}, fmt.Errorf("%w: %s pool size must be positive", errors.ErrInvalidArchitecture, l.name)
	}
	if in.Steps/l.pool == 0 {
		return Shape{}, fmt.Errorf("%w: %s cannot pool %d steps by %d",
			errors.ErrInvalidArchitecture, l.name, in.Steps, l.pool)
	}
	l.ch = in.Channels
	l.outT = in.Steps / l.pool
	return Shape{Steps: l.outT, Channels: l.ch}, nil
}

func (l *MaxPool1D) Params() []*Param { return nil }

// ScratchSize records the argmax input index of every output cell.
func (l *MaxPool1D) ScratchSize(Shape) int { return l.outT * l.ch }

func (l *MaxPool1D) Forward(_ Context, in, out, scratch []float64) {
	for t := 0; t < l.outT; t++ {
		for c := 0; c < l.ch; c++ {
			best := t*l.pool*l.ch + c
			for j := 1; j < l.pool; j++ {
				idx := (t*l.pool+j)*l.ch + c
				if in[idx] > in[best] {
					best = idx
				}
			}
			out[t*l.ch+c] = in[best]
			scratch[t*l.ch+c] = float64(best)
		}
	}
}

func (l *MaxPool1D) Backward(_ Context, _, _, scratch, dOut, dIn []float64, _ [][]float64) {
	if dIn == nil {
		return
	}
	for i, d := range dOut {
		dIn[int(scratch[i])] += d
	}
}

// GlobalMaxPool1D reduces the step dimension to one vector per sample, which makes
// everything after it independent of the sequence length.
type GlobalMaxPool1D struct {
	name  string
	steps int
	ch    int
}

func NewGlobalMaxPool1D(name string) *GlobalMaxPool1D {
	return &GlobalMaxPool1D{name: name}
}

func (l *GlobalMaxPool1D) Name() string { return l.name }
func (l *GlobalMaxPool1D) Type() string { return "GlobalMaxPooling1D" }

func (l *GlobalMaxPool1D) Build(in Shape, _ *rand.Rand, _ *tensor.Group) (Shape, error) {
	if in.Steps <= 0 {
		return Shape{}, fmt.Errorf("%w: %s has no steps to pool", errors.ErrInvalidArchitecture, l.name)
	}
	l.steps, l.ch = in.Steps, in.Channels
	return Shape{Steps: 1, Channels: in.Channels}, nil
}

func (l *GlobalMaxPool1D) Params() []*Param { return nil }

func (l *GlobalMaxPool1D) ScratchSize(Shape) int { return l.ch }

func (l *GlobalMaxPool1D) Forward(_ Context, in, out, scratch []float64) {
	for c := 0; c < l.ch; c++ {
		best := c
		for t := 1; t < l.steps; t++ {
			if idx := t*l.ch + c; in[idx] > in[best] {
				best = idx
			}
		}
		out[c] = in[best]
		scratch[c] = float64(best)
	}
}

func (l *GlobalMaxPool1D) Backward(_ Context, _, _, scratch, dOut, dIn []float64, _ [][]float64) {
	if dIn == nil {
		return
	}
	for c, d := range dOut {
		dIn[int(scratch[c])] += d
	}
}
