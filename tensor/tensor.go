package tensor

import "sync/atomic"

type Tensor struct {
	shape    []int
	data     []float64
	backend  *Backend
	released atomic.Bool
}

func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

func (t *Tensor) Size() int {
	return len(t.data)
}

// Data exposes the underlying buffer. It must not be used after Release.
func (t *Tensor) Data() []float64 {
	return t.data
}

func (t *Tensor) Zero() {
	clear(t.data)
}

// Release returns the tensor to its backend. Calling it twice, or on nil, is a no-op.
func (t *Tensor) Release() {
	if t == nil || !t.released.CompareAndSwap(false, true) {
		return
	}
	t.backend.release(len(t.data))
	t.data = nil
}

func (t *Tensor) Released() bool {
	return t.released.Load()
}

// Group collects tensors allocated together so they can be released on every exit path.
type Group struct {
	backend *Backend
	tensors []*Tensor
}

func NewGroup(b *Backend) *Group {
	return &Group{backend: b}
}

func (g *Group) New(shape ...int) (*Tensor, error) {
	t, err := g.backend.New(shape...)
	if err != nil {
		return nil, err
	}
	g.tensors = append(g.tensors, t)
	return t, nil
}

func (g *Group) Release() {
	for _, t := range g.tensors {
		t.Release()
	}
	g.tensors = nil
}
