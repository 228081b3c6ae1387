package trainer

import (
	"context"
	"fmt"
	"log/slog"
	"lyrics-lab/domain"
	"lyrics-lab/errors"
	"lyrics-lab/nn"
	"lyrics-lab/preprocess"
	"lyrics-lab/tensor"
	"math"
	"math/rand/v2"
	"time"

	"golang.org/x/sync/errgroup"
)

// EpochCallback receives one report per finished epoch, in order. It runs on the
// training goroutine and is expected to return quickly.
type EpochCallback func(report domain.EpochReport)

// overfitRatio is the val/train loss ratio above which an overfitting hint is logged.
const overfitRatio = 3

type Trainer struct {
	log *slog.Logger
	cfg Config
}

func New(log *slog.Logger, cfg Config) (*Trainer, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Trainer{log: log, cfg: cfg}, nil
}

func (t *Trainer) Config() Config {
	return t.cfg
}

// Train encodes samples with enc and fits model on them. model is only mutated
// once every precondition holds.
func (t *Trainer) Train(ctx context.Context, model *nn.Model, enc preprocess.Encoder, samples []domain.Sample, onEpoch EpochCallback) (domain.TrainingHistory, error) {
	if err := checkCount(len(samples), t.cfg.MinSamples); err != nil {
		return domain.TrainingHistory{}, err
	}
	for i, s := range samples {
		if err := validate.Struct(s); err != nil {
			return domain.TrainingHistory{}, fmt.Errorf("%w: sample %d: %v", errors.ErrInvalidSample, i, err)
		}
	}

	balance := domain.NewDatasetBalance(samples)
	t.log.Info("Dataset balance",
		"low", balance.LowCount, "mid", balance.MidCount, "high", balance.HighCount, "total", balance.Total)
	if balance.Skewed() {
		t.log.Warn("Dataset is heavily skewed towards low scores", "low", balance.LowCount, "total", balance.Total)
	}

	xs := make([][]int, len(samples))
	ys := make([]float64, len(samples))
	oov := 0
	for i, s := range samples {
		encoded := enc.Encode(s.Text)
		xs[i], ys[i] = encoded.IDs, s.Score
		oov += encoded.OOVCount
	}
	t.log.Debug("Samples encoded", "count", len(xs), "max_len", enc.MaxLen(), "oov_tokens", oov)

	return t.Fit(ctx, model, xs, ys, onEpoch)
}

// Fit trains model on pre-encoded rows. Ragged rows or ids unknown to the model
// fail with ErrDimensionMismatch before any weight changes. Every buffer allocated
// here is released on return, whatever the outcome.
func (t *Trainer) Fit(ctx context.Context, model *nn.Model, xs [][]int, ys []float64, onEpoch EpochCallback) (domain.TrainingHistory, error) {
	start := time.Now()
	n := len(xs)
	if err := checkCount(n, t.cfg.MinSamples); err != nil {
		return domain.TrainingHistory{}, err
	}
	if len(ys) != n {
		return domain.TrainingHistory{}, fmt.Errorf("%w: %d rows but %d targets", errors.ErrDimensionMismatch, n, len(ys))
	}
	for i, row := range xs {
		if err := model.CheckInput(row); err != nil {
			return domain.TrainingHistory{}, fmt.Errorf("row %d: %w", i, err)
		}
	}
	for i, y := range ys {
		if math.IsNaN(y) || y < 0 || y > 1 {
			return domain.TrainingHistory{}, fmt.Errorf("%w: target %d is %v, expected [0,1]", errors.ErrInvalidSample, i, y)
		}
	}
	if !model.Compiled() {
		return domain.TrainingHistory{}, fmt.Errorf("%w: model is not compiled", errors.ErrModelNotBuilt)
	}

	trainCount := t.cfg.splitAt(n)
	if trainCount == 0 {
		return domain.TrainingHistory{}, fmt.Errorf("%w: validation split leaves no training sample", errors.ErrInsufficientData)
	}
	batchSize := min(t.cfg.BatchSize, trainCount)

	r, err := newRun(model, xs, ys, min(t.cfg.workers(), batchSize))
	defer r.release()
	if err != nil {
		t.log.Error("Training buffers could not be allocated", "error", err, "backend", model.Backend().Stats())
		return domain.TrainingHistory{}, err
	}

	history := domain.TrainingHistory{
		Samples:    n,
		TrainCount: trainCount,
		ValCount:   n - trainCount,
		BatchSize:  batchSize,
	}
	t.log.Info("Training started",
		"samples", n, "train", trainCount, "validation", n-trainCount,
		"epochs", t.cfg.Epochs, "batch_size", batchSize, "params", model.CountParams())

	order := make([]int, trainCount)
	for i := range order {
		order[i] = i
	}
	val := make([]int, 0, n-trainCount)
	for i := trainCount; i < n; i++ {
		val = append(val, i)
	}
	shuffler := rand.New(rand.NewPCG(t.cfg.Seed, 0))

	for epoch := 0; epoch < t.cfg.Epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			history.Duration = time.Since(start)
			t.log.Info("Training cancelled", "completed_epochs", epoch)
			return history, fmt.Errorf("%w after %d epochs: %w", errors.ErrTrainingCancelled, epoch, err)
		}
		if t.cfg.Shuffle {
			shuffler.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
		}

		var sums metrics
		for b, batch := 0, 0; b < trainCount; b, batch = b+batchSize, batch+1 {
			idx := order[b:min(b+batchSize, trainCount)]
			seed := uint64(epoch)<<32 | uint64(batch)
			m, err := r.step(t.cfg.Seed, seed, idx)
			if err != nil {
				return history, fmt.Errorf("epoch %d: %w", epoch+1, err)
			}
			sums.add(m)
			if err := model.Apply(r.total); err != nil {
				return history, err
			}
		}

		report := domain.EpochReport{
			Epoch:    epoch,
			Loss:     sums.loss / float64(trainCount),
			MAE:      sums.mae / float64(trainCount),
			Accuracy: sums.hits / float64(trainCount),
		}
		if len(val) > 0 {
			v, err := r.evaluate(val)
			if err != nil {
				return history, fmt.Errorf("epoch %d validation: %w", epoch+1, err)
			}
			report.HasValidation = true
			report.ValLoss = v.loss / float64(len(val))
			report.ValMAE = v.mae / float64(len(val))
		}
		history.Epochs = append(history.Epochs, report)

		t.log.Info(fmt.Sprintf("Epoch %d/%d", epoch+1, t.cfg.Epochs),
			"loss", fmt.Sprintf("%.4f", report.Loss),
			"val_loss", fmt.Sprintf("%.4f", report.ValLoss),
			"mae", fmt.Sprintf("%.4f", report.MAE),
			"acc", fmt.Sprintf("%.4f", report.Accuracy))
		if report.HasValidation && report.ValLoss > report.Loss*overfitRatio {
			t.log.Warn("Possible overfitting", "epoch", epoch+1, "loss", report.Loss, "val_loss", report.ValLoss)
		}
		if onEpoch != nil {
			onEpoch(report)
		}
	}

	history.Duration = time.Since(start)
	t.log.Info("Training finished", "epochs", len(history.Epochs), "duration", history.Duration)
	return history, nil
}

type metrics struct {
	loss float64
	mae  float64
	hits float64
}

func (m *metrics) add(o metrics) {
	m.loss += o.loss
	m.mae += o.mae
	m.hits += o.hits
}

func (m *metrics) observe(pred, target float64, loss nn.Loss) {
	m.loss += loss.Value(pred, target)
	m.mae += math.Abs(pred - target)
	if (pred > 0.5) == (target > 0.5) {
		m.hits++
	}
}

// run owns the buffers of one training pass: the stacked dataset and, per worker,
// a workspace and a gradient accumulator.
type run struct {
	model      *nn.Model
	data       *tensor.Group
	xs         []float64
	ys         []float64
	width      int
	workspaces []*nn.Workspace
	grads      []*nn.Gradients
	total      *nn.Gradients
}

func newRun(model *nn.Model, xs [][]int, ys []float64, workers int) (*run, error) {
	r := &run{model: model, data: tensor.NewGroup(model.Backend()), width: model.InputLength()}
	xt, err := r.data.New(len(xs), r.width)
	if err != nil {
		return r, err
	}
	yt, err := r.data.New(len(ys), 1)
	if err != nil {
		return r, err
	}
	r.xs, r.ys = xt.Data(), yt.Data()
	for i, row := range xs {
		for j, id := range row {
			r.xs[i*r.width+j] = float64(id)
		}
	}
	copy(r.ys, ys)

	for w := 0; w < workers; w++ {
		ws, err := model.NewWorkspace()
		if err != nil {
			return r, err
		}
		r.workspaces = append(r.workspaces, ws)
		g, err := model.NewGradients()
		if err != nil {
			return r, err
		}
		r.grads = append(r.grads, g)
	}
	if r.total, err = model.NewGradients(); err != nil {
		return r, err
	}
	return r, nil
}

func (r *run) row(i int) []float64 {
	return r.xs[i*r.width : (i+1)*r.width]
}

// chunks splits idx into at most len(r.workspaces) contiguous parts.
func (r *run) chunks(idx []int) [][]int {
	k := min(len(r.workspaces), len(idx))
	out := make([][]int, 0, k)
	size, extra := len(idx)/k, len(idx)%k
	for c, from := 0, 0; c < k; c++ {
		to := from + size
		if c < extra {
			to++
		}
		out = append(out, idx[from:to])
		from = to
	}
	return out
}

// step computes the mean gradient of the batch idx into r.total. Each worker owns
// its accumulator and the partial sums are merged in worker order, so the result
// does not depend on scheduling. A non-finite prediction aborts the batch before
// any gradient is merged.
func (r *run) step(seed, batchSeed uint64, idx []int) (metrics, error) {
	parts := r.chunks(idx)
	partial := make([]metrics, len(parts))
	scale := 1 / float64(len(idx))
	loss := r.model.Loss()

	var g errgroup.Group
	g.SetLimit(len(r.workspaces))
	for w, part := range parts {
		g.Go(func() error {
			ws, grads := r.workspaces[w], r.grads[w]
			grads.Zero()
			c := nn.Context{Training: true, Rand: rand.New(rand.NewPCG(seed^batchSeed, uint64(w)))}
			for _, i := range part {
				pred := r.model.Forward(ws, r.row(i), c)
				if err := finite(pred, i); err != nil {
					return err
				}
				partial[w].observe(pred, r.ys[i], loss)
				r.model.Backward(ws, loss.Grad(pred, r.ys[i])*scale, c, grads)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return metrics{}, err
	}

	r.total.Zero()
	var sums metrics
	for w := range parts {
		r.total.Add(r.grads[w])
		sums.add(partial[w])
	}
	return sums, nil
}

// evaluate runs idx in inference mode and returns summed metrics.
func (r *run) evaluate(idx []int) (metrics, error) {
	parts := r.chunks(idx)
	partial := make([]metrics, len(parts))
	loss := r.model.Loss()

	var g errgroup.Group
	g.SetLimit(len(r.workspaces))
	for w, part := range parts {
		g.Go(func() error {
			for _, i := range part {
				pred := r.model.Forward(r.workspaces[w], r.row(i), nn.Context{})
				if err := finite(pred, i); err != nil {
					return err
				}
				partial[w].observe(pred, r.ys[i], loss)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return metrics{}, err
	}

	var sums metrics
	for _, p := range partial {
		sums.add(p)
	}
	return sums, nil
}

func finite(pred float64, sample int) error {
	if math.IsNaN(pred) || math.IsInf(pred, 0) {
		return fmt.Errorf("%w: prediction %v for sample %d", errors.ErrNumericInstability, pred, sample)
	}
	return nil
}

func (r *run) release() {
	for _, ws := range r.workspaces {
		ws.Release()
	}
	for _, g := range r.grads {
		g.Release()
	}
	if r.total != nil {
		r.total.Release()
	}
	r.data.Release()
}
