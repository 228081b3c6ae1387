package nn

import (
	"fmt"
	"lyrics-lab/errors"
	"lyrics-lab/tensor"
	"math/rand/v2"
)

const embeddingInitLimit = 0.05

// Embedding maps each token id of the input sequence to a learned vector.
// Input values are ids stored as float64, one channel per step.
type Embedding struct {
	name    string
	vocab   int
	dim     int
	weights *Param
}

func NewEmbedding(name string, vocab, dim int) *Embedding {
	return &Embedding{name: name, vocab: vocab, dim: dim}
}

func (e *Embedding) Name() string { return e.name }
func (e *Embedding) Type() string { return "Embedding" }

func (e *Embedding) Build(in Shape, init *rand.Rand, alloc *tensor.Group) (Shape, error) {
	if e.vocab <= 0 || e.dim <= 0 {
		return Shape{}, fmt.Errorf("%w: %s needs positive vocabulary and width, got %d and %d",
			errors.ErrInvalidArchitecture, e.name, e.vocab, e.dim)
	}
	if in.Channels != 1 || in.Steps <= 0 {
		return Shape{}, fmt.Errorf("%w: %s expects [steps,1] ids, got %s", errors.ErrInvalidArchitecture, e.name, in)
	}
	w, err := newParam(alloc, e.name+"/embeddings", e.vocab, e.dim)
	if err != nil {
		return Shape{}, err
	}
	fillUniform(w.Value.Data(), embeddingInitLimit, init)
	e.weights = w
	return Shape{Steps: in.Steps, Channels: e.dim}, nil
}

func (e *Embedding) Params() []*Param { return []*Param{e.weights} }

func (e *Embedding) ScratchSize(Shape) int { return 0 }

func (e *Embedding) Vocab() int { return e.vocab }

func (e *Embedding) Forward(_ Context, in, out, _ []float64) {
	w := e.weights.Value.Data()
	for t, raw := range in {
		id := int(raw)
		copy(out[t*e.dim:(t+1)*e.dim], w[id*e.dim:(id+1)*e.dim])
	}
}

func (e *Embedding) Backward(_ Context, in, _, _, dOut, _ []float64, grads [][]float64) {
	g := grads[0]
	for t, raw := range in {
		row := g[int(raw)*e.dim : (int(raw)+1)*e.dim]
		delta := dOut[t*e.dim : (t+1)*e.dim]
		for d := range row {
			row[d] += delta[d]
		}
	}
}
