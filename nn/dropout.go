package nn

import (
	"fmt"
	"lyrics-lab/errors"
	"lyrics-lab/tensor"
	"math/rand/v2"
)

// Dropout zeroes activations with probability rate during training and rescales the
// survivors. At inference it is the identity.
type Dropout struct {
	name string
	rate float64
}

func NewDropout(name string, rate float64) *Dropout {
	return &Dropout{name: name, rate: rate}
}

func (l *Dropout) Name() string { return l.name }
func (l *Dropout) Type() string { return "Dropout" }

func (l *Dropout) Build(in Shape, _ *rand.Rand, _ *tensor.Group) (Shape, error) {
	if l.rate < 0 || l.rate >= 1 {
		return Shape{}, fmt.Errorf("%w: %s rate must be in [0,1), got %v", errors.ErrInvalidArchitecture, l.name, l.rate)
	}
	return in, nil
}

func (l *Dropout) Params() []*Param { return nil }

// ScratchSize stores the mask applied on the last forward pass.
func (l *Dropout) ScratchSize(in Shape) int { return in.Size() }

func (l *Dropout) Forward(c Context, in, out, mask []float64) {
	if !c.Training || l.rate == 0 || c.Rand == nil {
		for i := range mask {
			mask[i] = 1
		}
		copy(out, in)
		return
	}
	keep := 1 - l.rate
	for i, v := range in {
		if c.Rand.Float64() < keep {
			mask[i] = 1 / keep
		} else {
			mask[i] = 0
		}
		out[i] = v * mask[i]
	}
}

func (l *Dropout) Backward(_ Context, _, _, mask, dOut, dIn []float64, _ [][]float64) {
	if dIn == nil {
		return
	}
	for i, d := range dOut {
		dIn[i] += d * mask[i]
	}
}
