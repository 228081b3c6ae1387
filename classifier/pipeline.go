package classifier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"lyrics-lab/architecture"
	"lyrics-lab/domain"
	apperrors "lyrics-lab/errors"
	"lyrics-lab/predictor"
	"lyrics-lab/preprocess"
	"lyrics-lab/repositories"
	"lyrics-lab/tensor"
	"lyrics-lab/trainer"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// TrainOptions tunes one training pass.
type TrainOptions struct {
	// OnEpochEnd is called after every epoch, in order. Nil is a no-op.
	OnEpochEnd trainer.EpochCallback
	// Fresh rebuilds the vocabulary from the samples and starts from a new model
	// instead of continuing to train the current one.
	Fresh bool
}

// Pipeline owns the current bundle. Predictions share it read-only while a
// training pass holds it exclusively; at most one pass runs at a time.
type Pipeline struct {
	log       *slog.Logger
	cfg       Config
	backend   *tensor.Backend
	store     repositories.IModelStore
	runs      repositories.IRunRepository
	builder   preprocess.Builder
	trainer   *trainer.Trainer
	predictor *predictor.Predictor

	mu       sync.RWMutex
	training atomic.Bool
	bundle   *Bundle
	// vocab is the vocabulary predictions are expected to use. It is set by the
	// first bundle and by BindVocabulary.
	vocab *preprocess.Vocabulary
}

// NewPipeline wires a pipeline. runs may be nil when training runs are not recorded.
func NewPipeline(
	log *slog.Logger,
	cfg Config,
	backend *tensor.Backend,
	store repositories.IModelStore,
	runs repositories.IRunRepository,
	pred *predictor.Predictor,
) (*Pipeline, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	builder, err := preprocess.NewBuilder(cfg.Builder, log)
	if err != nil {
		return nil, err
	}
	tr, err := trainer.New(log, cfg.Trainer)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		log:       log,
		cfg:       cfg,
		backend:   backend,
		store:     store,
		runs:      runs,
		builder:   builder,
		trainer:   tr,
		predictor: pred,
	}, nil
}

func (p *Pipeline) Backend() *tensor.Backend {
	return p.backend
}

// BindVocabulary declares the vocabulary predictions must use. A current model
// built on another vocabulary is rejected with ErrVocabularyMismatch.
func (p *Pipeline) BindVocabulary(vocab *preprocess.Vocabulary) error {
	if vocab == nil {
		return apperrors.ErrVocabularyNotBuilt
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bundle != nil && p.bundle.Vocabulary().Hash() != vocab.Hash() {
		return fmt.Errorf("%w: current model uses vocabulary %.12s, got %.12s",
			apperrors.ErrVocabularyMismatch, p.bundle.Vocabulary().Hash(), vocab.Hash())
	}
	p.vocab = vocab
	return nil
}

// BuildVocabulary builds a vocabulary from corpus without binding it.
func (p *Pipeline) BuildVocabulary(corpus []string) *preprocess.Vocabulary {
	return p.builder.Build(corpus)
}

func (p *Pipeline) Vocabulary() *preprocess.Vocabulary {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.vocab
}

// CreateModel replaces the current model with an untrained one over the bound
// vocabulary, sized for samples labeled samples.
func (p *Pipeline) CreateModel(samples int) error {
	if !p.training.CompareAndSwap(false, true) {
		return apperrors.ErrTrainingInProgress
	}
	defer p.training.Store(false)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.vocab == nil {
		return apperrors.ErrVocabularyNotBuilt
	}
	b, err := p.newBundle(p.vocab, samples)
	if err != nil {
		return err
	}
	p.replace(b)
	return nil
}

func (p *Pipeline) newBundle(vocab *preprocess.Vocabulary, samples int) (*Bundle, error) {
	preset := architecture.Resolve(p.cfg.Architecture, samples)
	spec, err := architecture.SpecFor(preset)
	if err != nil {
		return nil, err
	}
	enc, err := preprocess.NewEncoder(vocab, p.cfg.MaxSequenceLength)
	if err != nil {
		return nil, err
	}
	model, err := architecture.Create(p.backend, vocab.Len(), p.cfg.MaxSequenceLength, spec, p.cfg.Seed, p.log)
	if err != nil {
		return nil, err
	}
	return &Bundle{ID: uuid.New(), Spec: spec, Encoder: enc, Model: model}, nil
}

// replace installs b as the current bundle. The caller holds the write lock.
func (p *Pipeline) replace(b *Bundle) {
	if p.bundle != nil && p.bundle != b {
		p.bundle.release()
	}
	p.bundle = b
	p.vocab = b.Vocabulary()
}

// Train runs one blocking training pass. Without a current model, or with
// opts.Fresh, the vocabulary is built from samples and a model is created for it.
// A cancelled ctx stops the pass at the next epoch boundary: the weights of the
// last finished epoch are kept and ErrTrainingCancelled is returned with the
// history so far.
func (p *Pipeline) Train(ctx context.Context, samples []domain.Sample, opts TrainOptions) (domain.TrainingHistory, error) {
	if !p.training.CompareAndSwap(false, true) {
		return domain.TrainingHistory{}, apperrors.ErrTrainingInProgress
	}
	defer p.training.Store(false)
	return p.train(ctx, samples, opts)
}

func (p *Pipeline) train(ctx context.Context, samples []domain.Sample, opts TrainOptions) (domain.TrainingHistory, error) {
	if minSamples := p.cfg.Trainer.MinSamples; len(samples) < minSamples {
		return domain.TrainingHistory{}, fmt.Errorf("%w: %d labeled samples, at least %d required",
			apperrors.ErrInsufficientData, len(samples), minSamples)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	b := p.bundle
	fresh := b == nil || opts.Fresh
	if fresh {
		vocab := p.vocab
		if vocab == nil || opts.Fresh {
			vocab = p.builder.Build(lo.Map(samples, func(s domain.Sample, _ int) string { return s.Text }))
		}
		var err error
		if b, err = p.newBundle(vocab, len(samples)); err != nil {
			return domain.TrainingHistory{}, err
		}
	}

	history, err := p.trainer.Train(ctx, b.Model, b.Encoder, samples, opts.OnEpochEnd)
	cancelled := errors.Is(err, apperrors.ErrTrainingCancelled)
	if err != nil && (!cancelled || len(history.Epochs) == 0) {
		if fresh {
			b.release()
		}
		return history, err
	}

	b.Trained = true
	b.Version++
	p.replace(b)
	p.record(b, history, cancelled)
	return history, err
}

// record stores a summary of the pass. Failing to do so does not fail training.
func (p *Pipeline) record(b *Bundle, history domain.TrainingHistory, cancelled bool) {
	if p.runs == nil {
		return
	}
	run := repositories.DiskRun{
		ID:           uuid.New(),
		At:           time.Now().UTC(),
		Architecture: b.Spec.Label,
		Version:      b.Version,
		Samples:      history.Samples,
		Epochs:       len(history.Epochs),
		Duration:     history.Duration,
		Cancelled:    cancelled,
	}
	if last, ok := history.Last(); ok {
		run.Loss, run.ValLoss, run.MAE, run.Accuracy = last.Loss, last.ValLoss, last.MAE, last.Accuracy
	}
	if err := p.runs.StoreRun(run); err != nil {
		p.log.Warn("Training run could not be recorded", "error", err)
	}
}

// Predict scores text with the current model.
func (p *Pipeline) Predict(text string) (domain.PredictionResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.bundle == nil {
		return domain.PredictionResult{}, apperrors.ErrModelNotBuilt
	}
	return p.predictor.Predict(p.bundle.Model, p.bundle.Encoder, text)
}

// Info describes the current model. ok is false when there is none.
func (p *Pipeline) Info() (info domain.ModelInfo, ok bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.bundle == nil {
		return domain.ModelInfo{}, false
	}
	return p.bundle.Info(), true
}

// Save writes the current bundle under the primary key, then under the fallback
// key if that fails. It returns the key that was written.
func (p *Pipeline) Save() (string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.bundle == nil {
		return "", apperrors.ErrModelNotBuilt
	}
	blob := encodeBundle(p.bundle, time.Now())

	primaryErr := p.store.Save(p.cfg.PrimaryKey, blob)
	if primaryErr == nil {
		p.log.Info("Model saved", "key", p.cfg.PrimaryKey, "bytes", len(blob), "version", p.bundle.Version)
		return p.cfg.PrimaryKey, nil
	}
	p.log.Warn("Primary save failed, trying fallback", "key", p.cfg.PrimaryKey, "error", primaryErr)

	fallbackErr := p.store.Save(p.cfg.FallbackKey, blob)
	if fallbackErr == nil {
		p.log.Info("Model saved", "key", p.cfg.FallbackKey, "bytes", len(blob), "version", p.bundle.Version)
		return p.cfg.FallbackKey, nil
	}
	p.log.Error("Model could not be saved", "primary_error", primaryErr, "fallback_error", fallbackErr)
	return "", fmt.Errorf("%w: %w", apperrors.ErrPersistenceFailure, errors.Join(primaryErr, fallbackErr))
}

// Load replaces the current model with the most recently saved one found under
// the primary and fallback keys; the primary wins when both were saved at the same
// instant. Nothing stored under either key is not an error: found is false and,
// when a vocabulary is bound but no model exists, an untrained model is created.
func (p *Pipeline) Load() (found bool, err error) {
	if !p.training.CompareAndSwap(false, true) {
		return false, apperrors.ErrTrainingInProgress
	}
	defer p.training.Store(false)

	p.mu.Lock()
	defer p.mu.Unlock()

	type candidate struct {
		key     string
		blob    []byte
		savedAt time.Time
	}
	var (
		failures   []error
		candidates []candidate
	)
	for _, key := range []string{p.cfg.PrimaryKey, p.cfg.FallbackKey} {
		blob, err := p.store.Load(key)
		if errors.Is(err, apperrors.ErrModelNotFound) {
			p.log.Debug("No model stored", "key", key)
			continue
		}
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", key, err))
			continue
		}
		summary, err := Describe(blob)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", key, err))
			continue
		}
		candidates = append(candidates, candidate{key: key, blob: blob, savedAt: summary.SavedAt})
	}
	slices.SortStableFunc(candidates, func(a, b candidate) int {
		return b.savedAt.Compare(a.savedAt)
	})

	for _, c := range candidates {
		b, err := decodeBundle(c.blob, p.backend, p.log)
		if err != nil {
			if errors.Is(err, apperrors.ErrVocabularyMismatch) {
				return false, err
			}
			failures = append(failures, fmt.Errorf("%s: %w", c.key, err))
			continue
		}
		if p.vocab != nil && p.vocab.Hash() != b.Vocabulary().Hash() {
			b.release()
			return false, fmt.Errorf("%w: stored model %q uses vocabulary %.12s, bound vocabulary is %.12s",
				apperrors.ErrVocabularyMismatch, c.key, b.Vocabulary().Hash(), p.vocab.Hash())
		}
		p.replace(b)
		p.log.Info("Model loaded", "key", c.key, "id", b.ID, "version", b.Version,
			"architecture", b.Spec.Label, "saved_at", c.savedAt)
		return true, nil
	}

	if len(failures) > 0 {
		return false, fmt.Errorf("%w: %w", apperrors.ErrPersistenceFailure, errors.Join(failures...))
	}
	if p.bundle == nil && p.vocab != nil {
		p.log.Info("No model found, creating a new one")
		b, err := p.newBundle(p.vocab, 0)
		if err != nil {
			return false, err
		}
		p.replace(b)
	}
	return false, nil
}

// Close releases the current model.
func (p *Pipeline) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bundle != nil {
		p.bundle.release()
		p.bundle = nil
	}
}
