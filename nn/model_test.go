package nn

import (
	"lyrics-lab/errors"
	"lyrics-lab/tensor"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"
)

const (
	testVocab = 8
	testSteps = 9
)

func newTestModel(t *testing.T, backend *tensor.Backend) *Model {
	t.Helper()
	m, err := NewSequential(backend, testSteps, 3,
		NewEmbedding("embedding", testVocab, 4),
		NewConv1D("conv1d_1", 5, 2),
		NewLayerNorm("norm_1"),
		NewMaxPool1D("maxpool_1", 2),
		NewDropout("conv_dropout_1", 0.1),
		NewGlobalMaxPool1D("global_pooling"),
		NewDense("dense_1", 3, ReLU),
		NewDropout("dropout_1", 0.2),
		NewDense("output", 1, Sigmoid),
	)
	require.NoError(t, err)
	require.NoError(t, m.Compile(DefaultAdamConfig(1e-2), BinaryCrossEntropy))
	return m
}

func toRow(ids []int) []float64 {
	row := make([]float64, len(ids))
	for i, id := range ids {
		row[i] = float64(id)
	}
	return row
}

func TestModel_Summary(t *testing.T) {
	req := require.New(t)
	backend := tensor.NewBackend(0)
	m := newTestModel(t, backend)
	defer m.Release()

	summary := m.Summary()
	req.Len(summary, 9)
	req.Equal(Shape{Steps: 9, Channels: 4}, summary[0].Output)
	req.Equal(8*4, summary[0].Params)
	req.Equal(Shape{Steps: 8, Channels: 5}, summary[1].Output)
	req.Equal(2*4*5+5, summary[1].Params)
	req.Equal(Shape{Steps: 4, Channels: 5}, summary[3].Output)
	req.Equal(Shape{Steps: 1, Channels: 5}, summary[5].Output)
	req.Equal(Shape{Steps: 1, Channels: 1}, summary[8].Output)

	total := 0
	for _, l := range summary {
		total += l.Params
	}
	req.Equal(total, m.CountParams())
	req.Equal(testSteps, m.InputLength())
	req.Equal(testVocab, m.VocabSize())
}

// TestModel_GradientCheck compares backpropagated gradients with central finite
// differences of the loss, for every parameter.
func TestModel_GradientCheck(t *testing.T) {
	req := require.New(t)
	backend := tensor.NewBackend(0)
	m := newTestModel(t, backend)
	defer m.Release()

	ws, err := m.NewWorkspace()
	req.NoError(err)
	defer ws.Release()
	grads, err := m.NewGradients()
	req.NoError(err)
	defer grads.Release()

	row := toRow([]int{2, 5, 7, 1, 3, 3, 6, 0, 0})
	target := 0.8
	loss := m.Loss()
	inference := Context{}

	pred := m.Forward(ws, row, inference)
	m.Backward(ws, loss.Grad(pred, target), inference, grads)

	lossAt := func() float64 {
		return loss.Value(m.Forward(ws, row, inference), target)
	}
	const h = 1e-6
	checked := 0
	for i, p := range m.Params() {
		w := p.Value.Data()
		g := grads.Buffer(i)
		for j := range w {
			orig := w[j]
			w[j] = orig + h
			plus := lossAt()
			w[j] = orig - h
			minus := lossAt()
			w[j] = orig
			numeric := (plus - minus) / (2 * h)
			tolerance := 1e-5 + 1e-3*math.Max(math.Abs(numeric), math.Abs(g[j]))
			req.InDelta(numeric, g[j], tolerance, "param=%s index=%d", p.Name, j)
			checked++
		}
	}
	req.Equal(m.CountParams(), checked)
}

func TestModel_Fit_Toy(t *testing.T) {
	req := require.New(t)
	backend := tensor.NewBackend(0)
	m := newTestModel(t, backend)
	defer m.Release()

	ws, err := m.NewWorkspace()
	req.NoError(err)
	defer ws.Release()
	grads, err := m.NewGradients()
	req.NoError(err)
	defer grads.Release()

	// Given rows containing id 2 are positive, rows containing id 3 negative
	rows := [][]int{
		{2, 4, 2, 5, 0, 0, 0, 0, 0},
		{3, 4, 3, 5, 0, 0, 0, 0, 0},
		{5, 2, 6, 2, 7, 0, 0, 0, 0},
		{5, 3, 6, 3, 7, 0, 0, 0, 0},
	}
	targets := []float64{1, 0, 1, 0}
	meanLoss := func() float64 {
		total := 0.0
		for i, r := range rows {
			total += m.Loss().Value(m.Forward(ws, toRow(r), Context{}), targets[i])
		}
		return total / float64(len(rows))
	}

	before := meanLoss()
	c := Context{Training: true, Rand: rand.New(rand.NewPCG(1, 1))}
	for step := 0; step < 200; step++ {
		grads.Zero()
		for i, r := range rows {
			pred := m.Forward(ws, toRow(r), c)
			m.Backward(ws, m.Loss().Grad(pred, targets[i])/float64(len(rows)), c, grads)
		}
		req.NoError(m.Apply(grads))
	}
	after := meanLoss()

	req.Less(after, before)
	req.Equal(200, m.Optimizer().Steps())
}

func TestModel_Predict(t *testing.T) {
	req := require.New(t)
	backend := tensor.NewBackend(0)
	m := newTestModel(t, backend)
	defer m.Release()
	baseline := backend.Allocated()

	ids := []int{1, 2, 3, 4, 5, 6, 7, 0, 0}
	first, err := m.Predict(ids)
	req.NoError(err)
	second, err := m.Predict(ids)
	req.NoError(err)
	req.Equal(first, second)
	req.True(first > 0 && first < 1)

	// Per-call buffers are gone
	req.Equal(baseline, backend.Allocated())

	_, err = m.Predict(ids[:4])
	req.ErrorIs(err, errors.ErrDimensionMismatch)
	_, err = m.Predict([]int{1, 2, 3, 4, 5, 6, 7, 8, 0})
	req.ErrorIs(err, errors.ErrDimensionMismatch)
	_, err = m.Predict([]int{-1, 2, 3, 4, 5, 6, 7, 0, 0})
	req.ErrorIs(err, errors.ErrDimensionMismatch)
}

func TestModel_SameSeedSameWeights(t *testing.T) {
	req := require.New(t)
	backend := tensor.NewBackend(0)
	a := newTestModel(t, backend)
	defer a.Release()
	b := newTestModel(t, backend)
	defer b.Release()

	for i, p := range a.Params() {
		req.Equal(p.Value.Data(), b.Params()[i].Value.Data(), p.Name)
	}
}

func TestModel_Release(t *testing.T) {
	req := require.New(t)
	backend := tensor.NewBackend(0)
	m := newTestModel(t, backend)
	req.Positive(backend.Allocated())

	m.Release()
	req.Zero(backend.Allocated())
	req.Zero(backend.Stats().Elements)
}

func TestNewSequential_Invalid(t *testing.T) {
	backend := tensor.NewBackend(0)
	tests := []struct {
		name     string
		inputLen int
		layers   []Layer
	}{
		{name: "No layers", inputLen: 4},
		{name: "Non-positive input", inputLen: 0, layers: []Layer{NewEmbedding("e", 4, 2), NewGlobalMaxPool1D("g"), NewDense("o", 1, Sigmoid)}},
		{name: "Embedding not first", inputLen: 4, layers: []Layer{NewDense("o", 1, Sigmoid)}},
		{name: "Several outputs", inputLen: 4, layers: []Layer{NewEmbedding("e", 4, 2), NewGlobalMaxPool1D("g"), NewDense("o", 2, Sigmoid)}},
		{name: "Kernel wider than input", inputLen: 2, layers: []Layer{NewEmbedding("e", 4, 2), NewConv1D("c", 2, 3), NewGlobalMaxPool1D("g"), NewDense("o", 1, Sigmoid)}},
		{name: "Dense before pooling", inputLen: 4, layers: []Layer{NewEmbedding("e", 4, 2), NewDense("o", 1, Sigmoid)}},
		{name: "Dropout rate of one", inputLen: 4, layers: []Layer{NewEmbedding("e", 4, 2), NewDropout("d", 1), NewGlobalMaxPool1D("g"), NewDense("o", 1, Sigmoid)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			_, err := NewSequential(backend, tt.inputLen, 1, tt.layers...)
			req.ErrorIs(err, errors.ErrInvalidArchitecture)
			req.Zero(backend.Allocated())
		})
	}
}

func TestModel_ResourceExhausted(t *testing.T) {
	req := require.New(t)
	backend := tensor.NewBackend(20)
	_, err := NewSequential(backend, 4, 1,
		NewEmbedding("embedding", 10, 4),
		NewGlobalMaxPool1D("global_pooling"),
		NewDense("output", 1, Sigmoid),
	)
	req.ErrorIs(err, errors.ErrResourceExhausted)
	req.Zero(backend.Allocated())
}

func TestLoss(t *testing.T) {
	req := require.New(t)
	bce, err := NewLoss(BinaryCrossEntropy)
	req.NoError(err)
	mse, err := NewLoss(MeanSquaredError)
	req.NoError(err)

	req.InDelta(-math.Log(0.9), bce.Value(0.9, 1), 1e-12)
	req.InDelta(0.04, mse.Value(0.9, 0.7), 1e-12)
	req.False(math.IsInf(bce.Value(0, 1), 0), "clamped away from log(0)")

	// Gradients match finite differences
	for _, loss := range []Loss{bce, mse} {
		for _, pred := range []float64{0.1, 0.45, 0.8} {
			numeric := (loss.Value(pred+1e-6, 0.7) - loss.Value(pred-1e-6, 0.7)) / 2e-6
			req.InDelta(numeric, loss.Grad(pred, 0.7), 1e-5, "loss=%s pred=%v", loss.Kind(), pred)
		}
	}

	_, err = NewLoss("hinge")
	req.ErrorIs(err, errors.ErrInvalidArchitecture)
}

func TestDropout_Inference(t *testing.T) {
	req := require.New(t)
	d := NewDropout("dropout", 0.5)
	in := []float64{1, 2, 3, 4}
	out := make([]float64, 4)
	mask := make([]float64, 4)

	d.Forward(Context{}, in, out, mask)
	req.Equal(in, out)

	d.Forward(Context{Training: true, Rand: rand.New(rand.NewPCG(1, 2))}, in, out, mask)
	for i := range out {
		req.True(out[i] == 0 || out[i] == in[i]*2, "out=%v", out[i])
	}
}
