package nn

import (
	"fmt"
	"lyrics-lab/errors"
	"lyrics-lab/tensor"
	"math/rand/v2"
)

// Conv1D is a valid-padding, stride-1 convolution over steps with a ReLU output.
type Conv1D struct {
	name    string
	filters int
	kernel  int
	inCh    int
	outT    int
	weights *Param
	bias    *Param
}

func NewConv1D(name string, filters, kernel int) *Conv1D {
	return &Conv1D{name: name, filters: filters, kernel: kernel}
}

func (l *Conv1D) Name() string { return l.name }
func (l *Conv1D) Type() string { return "Conv1D" }

func (l *Conv1D) Build(in Shape, init *rand.Rand, alloc *tensor.Group) (Shape, error) {
	if l.filters <= 0 || l.kernel <= 0 {
		return Shape{}, fmt.Errorf("%w: %s needs positive filters and kernel, got %d and %d",
			errors.ErrInvalidArchitecture, l.name, l.filters, l.kernel)
	}
	if in.Steps < l.kernel {
		return Shape{}, fmt.Errorf("%w: %s kernel %d is wider than its %d input steps",
			errors.ErrInvalidArchitecture, l.name, l.kernel, in.Steps)
	}
	l.inCh = in.Channels
	l.outT = in.Steps - l.kernel + 1

	w, err := newParam(alloc, l.name+"/kernel", l.kernel, l.inCh, l.filters)
	if err != nil {
		return Shape{}, err
	}
	fillUniform(w.Value.Data(), glorotLimit(l.kernel*l.inCh, l.kernel*l.filters), init)
	b, err := newParam(alloc, l.name+"/bias", l.filters)
	if err != nil {
		return Shape{}, err
	}
	l.weights, l.bias = w, b
	return Shape{Steps: l.outT, Channels: l.filters}, nil
}

func (l *Conv1D) Params() []*Param { return []*Param{l.weights, l.bias} }

// ScratchSize holds the pre-activation gradient of one output step.
func (l *Conv1D) ScratchSize(Shape) int { return l.filters }

func (l *Conv1D) Forward(_ Context, in, out, _ []float64) {
	w, b := l.weights.Value.Data(), l.bias.Value.Data()
	F, C := l.filters, l.inCh
	for t := 0; t < l.outT; t++ {
		acc := out[t*F : (t+1)*F]
		copy(acc, b)
		for k := 0; k < l.kernel; k++ {
			x := in[(t+k)*C : (t+k+1)*C]
			for c, xv := range x {
				if xv == 0 {
					continue
				}
				row := w[(k*C+c)*F : (k*C+c+1)*F]
				for f := range acc {
					acc[f] += xv * row[f]
				}
			}
		}
		for f := range acc {
			acc[f] = ReLU.apply(acc[f])
		}
	}
}

func (l *Conv1D) Backward(_ Context, in, out, scratch, dOut, dIn []float64, grads [][]float64) {
	w := l.weights.Value.Data()
	gw, gb := grads[0], grads[1]
	F, C := l.filters, l.inCh
	dz := scratch[:F]
	for t := 0; t < l.outT; t++ {
		active := false
		for f := 0; f < F; f++ {
			dz[f] = dOut[t*F+f] * ReLU.derivative(out[t*F+f])
			gb[f] += dz[f]
			active = active || dz[f] != 0
		}
		if !active {
			continue
		}
		for k := 0; k < l.kernel; k++ {
			for c := 0; c < C; c++ {
				xv := in[(t+k)*C+c]
				off := (k*C + c) * F
				row, grow := w[off:off+F], gw[off:off+F]
				s := 0.0
				for f, d := range dz {
					grow[f] += xv * d
					s += row[f] * d
				}
				if dIn != nil {
					dIn[(t+k)*C+c] += s
				}
			}
		}
	}
}
