package nn

import "lyrics-lab/tensor"

// Workspace holds the activations, deltas and layer scratch of one sample in flight.
// A workspace must not be shared between goroutines.
type Workspace struct {
	acts    []*tensor.Tensor
	deltas  []*tensor.Tensor
	scratch []*tensor.Tensor
	group   *tensor.Group
}

func (m *Model) NewWorkspace() (*Workspace, error) {
	ws := &Workspace{
		group:   tensor.NewGroup(m.backend),
		acts:    make([]*tensor.Tensor, len(m.shapes)),
		deltas:  make([]*tensor.Tensor, len(m.shapes)),
		scratch: make([]*tensor.Tensor, len(m.layers)),
	}
	for i, s := range m.shapes {
		act, err := ws.group.New(s.Size())
		if err != nil {
			ws.Release()
			return nil, err
		}
		ws.acts[i] = act
		if i == 0 {
			continue
		}
		delta, err := ws.group.New(s.Size())
		if err != nil {
			ws.Release()
			return nil, err
		}
		ws.deltas[i] = delta
	}
	for i, l := range m.layers {
		n := l.ScratchSize(m.shapes[i])
		if n == 0 {
			continue
		}
		s, err := ws.group.New(n)
		if err != nil {
			ws.Release()
			return nil, err
		}
		ws.scratch[i] = s
	}
	return ws, nil
}

func (ws *Workspace) scratchData(layer int) []float64 {
	if ws.scratch[layer] == nil {
		return nil
	}
	return ws.scratch[layer].Data()
}

func (ws *Workspace) Release() {
	ws.group.Release()
}

// Gradients accumulates one buffer per model parameter.
type Gradients struct {
	buffers []*tensor.Tensor
	group   *tensor.Group
}

func (m *Model) NewGradients() (*Gradients, error) {
	g := &Gradients{group: tensor.NewGroup(m.backend)}
	for _, p := range m.params {
		t, err := g.group.New(p.Shape...)
		if err != nil {
			g.Release()
			return nil, err
		}
		g.buffers = append(g.buffers, t)
	}
	return g, nil
}

func (g *Gradients) forLayer(indexes []int) [][]float64 {
	out := make([][]float64, len(indexes))
	for i, idx := range indexes {
		out[i] = g.buffers[idx].Data()
	}
	return out
}

func (g *Gradients) Zero() {
	for _, b := range g.buffers {
		b.Zero()
	}
}

// Add accumulates other into g.
func (g *Gradients) Add(other *Gradients) {
	for i, b := range g.buffers {
		dst, src := b.Data(), other.buffers[i].Data()
		for j, v := range src {
			dst[j] += v
		}
	}
}

func (g *Gradients) Scale(f float64) {
	for _, b := range g.buffers {
		d := b.Data()
		for j := range d {
			d[j] *= f
		}
	}
}

// Buffer exposes the gradient of the i-th model parameter.
func (g *Gradients) Buffer(i int) []float64 {
	return g.buffers[i].Data()
}

func (g *Gradients) Release() {
	g.group.Release()
}
