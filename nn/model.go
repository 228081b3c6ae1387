package nn

import (
	"fmt"
	"lyrics-lab/errors"
	"lyrics-lab/tensor"
	"math/rand/v2"
)

// Model is a sequential stack of layers ending in a single output unit.
// Parameters and optimizer state live in the model's backend until Release.
type Model struct {
	layers    []Layer
	shapes    []Shape
	params    []*Param
	perLayer  [][]int
	backend   *tensor.Backend
	weights   *tensor.Group
	optimizer *Adam
	loss      Loss
	vocab     int
}

// NewSequential builds layers in order for sequences of inputLen token ids.
// The first layer must be an Embedding and the last one must produce one unit.
func NewSequential(backend *tensor.Backend, inputLen int, seed uint64, layers ...Layer) (*Model, error) {
	if inputLen <= 0 {
		return nil, fmt.Errorf("%w: input length must be positive, got %d", errors.ErrInvalidArchitecture, inputLen)
	}
	if len(layers) == 0 {
		return nil, fmt.Errorf("%w: no layers", errors.ErrInvalidArchitecture)
	}
	embedding, ok := layers[0].(*Embedding)
	if !ok {
		return nil, fmt.Errorf("%w: first layer must be an embedding, got %s", errors.ErrInvalidArchitecture, layers[0].Type())
	}

	m := &Model{
		layers:  layers,
		shapes:  []Shape{{Steps: inputLen, Channels: 1}},
		backend: backend,
		weights: tensor.NewGroup(backend),
		vocab:   embedding.Vocab(),
	}
	init := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	for _, l := range layers {
		out, err := l.Build(m.shapes[len(m.shapes)-1], init, m.weights)
		if err != nil {
			m.weights.Release()
			return nil, err
		}
		m.shapes = append(m.shapes, out)
		var idx []int
		for _, p := range l.Params() {
			idx = append(idx, len(m.params))
			m.params = append(m.params, p)
		}
		m.perLayer = append(m.perLayer, idx)
	}
	if out := m.shapes[len(m.shapes)-1]; out.Size() != 1 {
		m.weights.Release()
		return nil, fmt.Errorf("%w: model must end with a single unit, got %s", errors.ErrInvalidArchitecture, out)
	}
	return m, nil
}

// Compile attaches the optimizer and the loss. Optimizer state is allocated here so
// that training passes do not grow the backend.
func (m *Model) Compile(cfg AdamConfig, kind LossKind) error {
	loss, err := NewLoss(kind)
	if err != nil {
		return err
	}
	opt, err := newAdam(cfg, m.backend, m.params)
	if err != nil {
		return err
	}
	if m.optimizer != nil {
		m.optimizer.release()
	}
	m.optimizer, m.loss = opt, loss
	return nil
}

func (m *Model) Compiled() bool {
	return m.optimizer != nil && m.loss != nil
}

func (m *Model) Backend() *tensor.Backend { return m.backend }
func (m *Model) Loss() Loss               { return m.loss }
func (m *Model) Optimizer() *Adam         { return m.optimizer }
func (m *Model) Layers() []Layer          { return m.layers }
func (m *Model) Params() []*Param         { return m.params }
func (m *Model) InputLength() int         { return m.shapes[0].Steps }
func (m *Model) VocabSize() int           { return m.vocab }

// CountParams is the number of trainable scalars.
func (m *Model) CountParams() int {
	total := 0
	for _, p := range m.params {
		total += p.Size()
	}
	return total
}

type LayerSummary struct {
	Name   string
	Type   string
	Output Shape
	Params int
}

func (m *Model) Summary() []LayerSummary {
	out := make([]LayerSummary, len(m.layers))
	for i, l := range m.layers {
		n := 0
		for _, p := range l.Params() {
			n += p.Size()
		}
		out[i] = LayerSummary{Name: l.Name(), Type: l.Type(), Output: m.shapes[i+1], Params: n}
	}
	return out
}

// CheckInput verifies that ids has the model's input length and only holds ids
// known to the embedding.
func (m *Model) CheckInput(ids []int) error {
	if len(ids) != m.InputLength() {
		return fmt.Errorf("%w: expected sequence of length %d, got %d", errors.ErrDimensionMismatch, m.InputLength(), len(ids))
	}
	for i, id := range ids {
		if id < 0 || id >= m.vocab {
			return fmt.Errorf("%w: id %d at position %d outside vocabulary of %d", errors.ErrDimensionMismatch, id, i, m.vocab)
		}
	}
	return nil
}

// Release frees parameters and optimizer state. The model is unusable afterwards.
func (m *Model) Release() {
	if m.optimizer != nil {
		m.optimizer.release()
	}
	m.weights.Release()
}

// ResetOptimizer clears moment estimates, used after weights are replaced.
func (m *Model) ResetOptimizer() {
	if m.optimizer != nil {
		m.optimizer.reset()
	}
}

// Apply runs one optimizer step with grads.
func (m *Model) Apply(grads *Gradients) error {
	if !m.Compiled() {
		return fmt.Errorf("%w: model is not compiled", errors.ErrModelNotBuilt)
	}
	m.optimizer.Apply(m.params, grads)
	return nil
}

// Predict runs one inference pass. Its buffers are released before returning.
func (m *Model) Predict(ids []int) (float64, error) {
	if err := m.CheckInput(ids); err != nil {
		return 0, err
	}
	ws, err := m.NewWorkspace()
	if err != nil {
		return 0, err
	}
	defer ws.Release()
	input := ws.acts[0].Data()
	for i, id := range ids {
		input[i] = float64(id)
	}
	return m.forward(ws, Context{}), nil
}

// Forward runs one encoded row, ids stored as float64, through every layer and
// returns the scalar output. The row must have passed CheckInput.
func (m *Model) Forward(ws *Workspace, row []float64, c Context) float64 {
	copy(ws.acts[0].Data(), row)
	return m.forward(ws, c)
}

func (m *Model) forward(ws *Workspace, c Context) float64 {
	for i, l := range m.layers {
		l.Forward(c, ws.acts[i].Data(), ws.acts[i+1].Data(), ws.scratchData(i))
	}
	return ws.acts[len(m.layers)].Data()[0]
}

// Backward propagates dOutput, the loss derivative for the last Forward, and
// accumulates parameter gradients into grads.
func (m *Model) Backward(ws *Workspace, dOutput float64, c Context, grads *Gradients) {
	last := len(m.layers)
	ws.deltas[last].Data()[0] = dOutput
	for i := last - 1; i >= 0; i-- {
		var dIn []float64
		if i > 0 {
			dIn = ws.deltas[i].Data()
			clear(dIn)
		}
		m.layers[i].Backward(c, ws.acts[i].Data(), ws.acts[i+1].Data(), ws.scratchData(i),
			ws.deltas[i+1].Data(), dIn, grads.forLayer(m.perLayer[i]))
	}
}
