// Package nn implements the small sequential network used to score lyrics:
// per-sample forward and backward passes over buffers owned by a tensor.Backend.
package nn

import (
	"fmt"
	"lyrics-lab/tensor"
	"math"
	"math/rand/v2"
)

// Shape of one sample's activation, stored row-major as Steps x Channels.
type Shape struct {
	Steps    int
	Channels int
}

func (s Shape) Size() int {
	return s.Steps * s.Channels
}

func (s Shape) String() string {
	return fmt.Sprintf("[%d,%d]", s.Steps, s.Channels)
}

type Param struct {
	Name  string
	Shape []int
	Value *tensor.Tensor
}

func (p *Param) Size() int {
	return p.Value.Size()
}

// Context carries per-pass settings. Rand drives dropout and may be nil at inference.
type Context struct {
	Training bool
	Rand     *rand.Rand
}

// Layer is one step of a sequential model. Forward writes out from in and may keep
// per-sample state in scratch; Backward accumulates into dIn (nil for the first
// layer) and into grads, which is aligned with Params.
type Layer interface {
	Name() string
	Type() string
	Build(in Shape, init *rand.Rand, alloc *tensor.Group) (Shape, error)
	Params() []*Param
	ScratchSize(in Shape) int
	Forward(c Context, in, out, scratch []float64)
	Backward(c Context, in, out, scratch, dOut, dIn []float64, grads [][]float64)
}

func newParam(alloc *tensor.Group, name string, shape ...int) (*Param, error) {
	t, err := alloc.New(shape...)
	if err != nil {
		return nil, err
	}
	return &Param{Name: name, Shape: shape, Value: t}, nil
}

func fillUniform(data []float64, limit float64, r *rand.Rand) {
	for i := range data {
		data[i] = (r.Float64()*2 - 1) * limit
	}
}

// glorotLimit is the Glorot/Xavier uniform bound.
func glorotLimit(fanIn, fanOut int) float64 {
	return math.Sqrt(6 / float64(fanIn+fanOut))
}

type Activation string

const (
	Linear  Activation = "linear"
	ReLU    Activation = "relu"
	Sigmoid Activation = "sigmoid"
)

func (a Activation) apply(z float64) float64 {
	switch a {
	case ReLU:
		return math.Max(0, z)
	case Sigmoid:
		if z >= 0 {
			return 1 / (1 + math.Exp(-z))
		}
		e := math.Exp(z)
		return e / (1 + e)
	default:
		return z
	}
}

// derivative is expressed through the activation output.
func (a Activation) derivative(out float64) float64 {
	switch a {
	case ReLU:
		if out > 0 {
			return 1
		}
		return 0
	case Sigmoid:
		return out * (1 - out)
	default:
		return 1
	}
}

func (a Activation) valid() bool {
	return a == Linear || a == ReLU || a == Sigmoid
}
