package nn

import (
	"fmt"
	"lyrics-lab/errors"
	"lyrics-lab/tensor"
	"math/rand/v2"
)

// Dense is a fully-connected layer over a flat (single step) input.
type Dense struct {
	name       string
	units      int
	activation Activation
	in         int
	weights    *Param
	bias       *Param
}

func NewDense(name string, units int, activation Activation) *Dense {
	return &Dense{name: name, units: units, activation: activation}
}

func (l *Dense) Name() string { return l.name }
func (l *Dense) Type() string { return "Dense" }

func (l *Dense) Build(in Shape, init *rand.Rand, alloc *tensor.Group) (Shape, error) {
	if l.units <= 0 {
		return Shape{}, fmt.Errorf("%w: %s needs positive units, got %d", errors.ErrInvalidArchitecture, l.name, l.units)
	}
	if !l.activation.valid() {
		return Shape{}, fmt.Errorf("%w: %s unknown activation %q", errors.ErrInvalidArchitecture, l.name, l.activation)
	}
	if in.Steps != 1 {
		return Shape{}, fmt.Errorf("%w: %s expects a pooled [1,n] input, got %s", errors.ErrInvalidArchitecture, l.name, in)
	}
	l.in = in.Channels
	w, err := newParam(alloc, l.name+"/kernel", l.in, l.units)
	if err != nil {
		return Shape{}, err
	}
	fillUniform(w.Value.Data(), glorotLimit(l.in, l.units), init)
	b, err := newParam(alloc, l.name+"/bias", l.units)
	if err != nil {
		return Shape{}, err
	}
	l.weights, l.bias = w, b
	return Shape{Steps: 1, Channels: l.units}, nil
}

func (l *Dense) Params() []*Param { return []*Param{l.weights, l.bias} }

func (l *Dense) ScratchSize(Shape) int { return l.units }

func (l *Dense) Forward(_ Context, in, out, _ []float64) {
	w, b := l.weights.Value.Data(), l.bias.Value.Data()
	copy(out, b)
	for i, x := range in {
		if x == 0 {
			continue
		}
		row := w[i*l.units : (i+1)*l.units]
		for u := range out {
			out[u] += x * row[u]
		}
	}
	for u := range out {
		out[u] = l.activation.apply(out[u])
	}
}

func (l *Dense) Backward(_ Context, in, out, scratch, dOut, dIn []float64, grads [][]float64) {
	w := l.weights.Value.Data()
	gw, gb := grads[0], grads[1]
	dz := scratch[:l.units]
	for u := range dz {
		dz[u] = dOut[u] * l.activation.derivative(out[u])
		gb[u] += dz[u]
	}
	for i, x := range in {
		row, grow := w[i*l.units:(i+1)*l.units], gw[i*l.units:(i+1)*l.units]
		s := 0.0
		for u, d := range dz {
			grow[u] += x * d
			s += row[u] * d
		}
		if dIn != nil {
			dIn[i] += s
		}
	}
}
