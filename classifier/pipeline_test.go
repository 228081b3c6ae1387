package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"lyrics-lab/domain"
	"lyrics-lab/errors"
	"lyrics-lab/lexicon"
	"lyrics-lab/mocks"
	"lyrics-lab/predictor"
	"lyrics-lab/repositories"
	"lyrics-lab/tensor"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func lyrics() []domain.Sample {
	return []domain.Sample{
		{Text: "trash worthless stupid trash", Score: 0.9},
		{Text: "sunshine beautiful dance heart", Score: 0.1},
		{Text: "worthless stupid bitch trash", Score: 0.95},
		{Text: "happy heart love sunshine", Score: 0.05},
		{Text: "stupid trash worthless", Score: 0.85},
		{Text: "beautiful love dance", Score: 0.1},
		{Text: "bitch worthless trash stupid", Score: 0.9},
		{Text: "love happy sunshine heart", Score: 0.0},
		{Text: "trash bitch stupid", Score: 0.8},
		{Text: "dance beautiful happy", Score: 0.15},
		{Text: "worthless trash bitch", Score: 0.9},
		{Text: "heart love beautiful", Score: 0.1},
	}
}

func texts(samples []domain.Sample) []string {
	out := make([]string, len(samples))
	for i, s := range samples {
		out[i] = s.Text
	}
	return out
}

func testConfig(epochs int) Config {
	cfg := DefaultConfig()
	cfg.MaxSequenceLength = 20
	cfg.Trainer.Epochs = epochs
	cfg.Trainer.ValidationSplit = 0
	return cfg
}

func newPipeline(t *testing.T, cfg Config, store repositories.IModelStore, runs repositories.IRunRepository) *Pipeline {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	lex, err := lexicon.New(lexicon.DefaultTerms, log)
	require.NoError(t, err)
	p, err := NewPipeline(log, cfg, tensor.NewBackend(0), store, runs, predictor.New(log, lex))
	require.NoError(t, err)
	t.Cleanup(p.Close)
	return p
}

func newBadgerStore(t *testing.T) repositories.ModelStore {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return repositories.NewModelStore(db, logs.GetLoggerFromLevel(slog.LevelDebug), 0)
}

func TestPipeline_TrainAndPredict(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t, testConfig(150), newBadgerStore(t), nil)

	// Given no model yet
	_, err := p.Predict("trash")
	req.ErrorIs(err, errors.ErrModelNotBuilt)
	_, ok := p.Info()
	req.False(ok)

	// When training on twelve labeled lyrics
	var epochs []int
	history, err := p.Train(context.Background(), lyrics(), TrainOptions{
		OnEpochEnd: func(r domain.EpochReport) { epochs = append(epochs, r.Epoch) },
	})
	req.NoError(err)
	req.Len(history.Epochs, 150)
	req.Len(epochs, 150)
	req.Less(history.Epochs[149].Loss, history.Epochs[0].Loss)

	// Then held-out lyrics land on the right side of the midpoint
	flagged, err := p.Predict("stupid worthless trash")
	req.NoError(err)
	req.Greater(flagged.Score, 0.5)
	req.Equal([]string{"worthless", "trash"}, flagged.Flagged)

	neutral, err := p.Predict("love sunshine heart")
	req.NoError(err)
	req.Less(neutral.Score, 0.5)
	req.Empty(neutral.Flagged)

	info, ok := p.Info()
	req.True(ok)
	req.True(info.Trained)
	req.Equal(1, info.Version)
	req.Equal("CNN Ultra-Compact", info.Architecture)
	req.Equal(20, info.MaxSequenceLength)
	req.Equal(p.Vocabulary().Len(), info.VocabSize)
	req.Equal(p.Vocabulary().Hash(), info.VocabularyHash)
	req.Positive(info.TotalParams)
}

func TestPipeline_Train_InsufficientData(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t, testConfig(2), newBadgerStore(t), nil)

	_, err := p.Train(context.Background(), lyrics()[:9], TrainOptions{})

	req.ErrorIs(err, errors.ErrInsufficientData)
	_, ok := p.Info()
	req.False(ok)
	req.Zero(p.Backend().Allocated())
}

func TestPipeline_Train_ContinuesCurrentModel(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t, testConfig(2), newBadgerStore(t), nil)

	_, err := p.Train(context.Background(), lyrics(), TrainOptions{})
	req.NoError(err)
	first, _ := p.Info()

	_, err = p.Train(context.Background(), lyrics(), TrainOptions{})
	req.NoError(err)
	second, _ := p.Info()
	req.Equal(first.ID, second.ID)
	req.Equal(2, second.Version)

	// When asking for a fresh model, a new bundle replaces the current one
	allocated := p.Backend().Allocated()
	_, err = p.Train(context.Background(), lyrics(), TrainOptions{Fresh: true})
	req.NoError(err)
	third, _ := p.Info()
	req.NotEqual(first.ID, third.ID)
	req.Equal(1, third.Version)
	req.Equal(allocated, p.Backend().Allocated())
}

func TestPipeline_SaveAndLoad(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)
	p := newPipeline(t, testConfig(3), store, nil)
	_, err := p.Train(context.Background(), lyrics(), TrainOptions{})
	req.NoError(err)

	key, err := p.Save()
	req.NoError(err)
	req.Equal(DefaultPrimaryKey, key)

	// When another pipeline loads from the same store
	reloaded := newPipeline(t, testConfig(3), store, nil)
	found, err := reloaded.Load()
	req.NoError(err)
	req.True(found)

	// Then it describes and scores exactly like the original
	want, _ := p.Info()
	got, _ := reloaded.Info()
	req.Equal(want, got)
	for _, text := range append(texts(lyrics()), "never seen words", "") {
		a, err := p.Predict(text)
		req.NoError(err)
		b, err := reloaded.Predict(text)
		req.NoError(err)
		req.Equal(a, b, text)
	}
}

func TestPipeline_Save_Fallback(t *testing.T) {
	tests := []struct {
		name        string
		primaryErr  error
		fallbackErr error
		wantKey     string
		wantErr     error
	}{
		{name: "Primary works", wantKey: DefaultPrimaryKey},
		{name: "Fallback after quota", primaryErr: errors.ErrQuotaExceeded, wantKey: DefaultFallbackKey},
		{name: "Both fail", primaryErr: errors.ErrQuotaExceeded, fallbackErr: fmt.Errorf("disk full"), wantErr: errors.ErrPersistenceFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			ctrl := gomock.NewController(t)
			store := mocks.NewMockIModelStore(ctrl)
			p := newPipeline(t, testConfig(1), store, nil)
			_, err := p.Train(context.Background(), lyrics(), TrainOptions{})
			req.NoError(err)

			store.EXPECT().Save(DefaultPrimaryKey, gomock.Any()).Return(tt.primaryErr).Times(1)
			if tt.primaryErr != nil {
				store.EXPECT().Save(DefaultFallbackKey, gomock.Any()).Return(tt.fallbackErr).Times(1)
			}

			key, err := p.Save()
			if tt.wantErr != nil {
				req.ErrorIs(err, tt.wantErr)
				req.ErrorIs(err, tt.primaryErr)
				req.ErrorIs(err, tt.fallbackErr)
				req.Empty(key)
				return
			}
			req.NoError(err)
			req.Equal(tt.wantKey, key)
		})
	}
}

// unwritablePrimary refuses writes to the primary key once broken is set.
type unwritablePrimary struct {
	repositories.IModelStore
	broken bool
}

func (s *unwritablePrimary) Save(key string, blob []byte) error {
	if s.broken && key == DefaultPrimaryKey {
		return fmt.Errorf("%w: %q", errors.ErrQuotaExceeded, key)
	}
	return s.IModelStore.Save(key, blob)
}

func TestPipeline_Save_FallbackThenLoad(t *testing.T) {
	req := require.New(t)
	store := &unwritablePrimary{IModelStore: newBadgerStore(t)}
	p := newPipeline(t, testConfig(1), store, nil)

	// Given a first model saved under the primary key
	_, err := p.Train(context.Background(), lyrics(), TrainOptions{})
	req.NoError(err)
	key, err := p.Save()
	req.NoError(err)
	req.Equal(DefaultPrimaryKey, key)

	// When a later version can only be written to the fallback key
	_, err = p.Train(context.Background(), lyrics(), TrainOptions{})
	req.NoError(err)
	store.broken = true
	key, err = p.Save()
	req.NoError(err)
	req.Equal(DefaultFallbackKey, key)
	want, ok := p.Info()
	req.True(ok)
	req.Equal(2, want.Version)

	// Then a fresh pipeline loads the last saved version, not the stale primary
	reloaded := newPipeline(t, testConfig(1), store, nil)
	found, err := reloaded.Load()
	req.NoError(err)
	req.True(found)
	got, ok := reloaded.Info()
	req.True(ok)
	req.Equal(want, got)
	for _, text := range texts(lyrics()) {
		a, err := p.Predict(text)
		req.NoError(err)
		b, err := reloaded.Predict(text)
		req.NoError(err)
		req.Equal(a, b, text)
	}

	// Then once the primary is writable again a newer save takes precedence
	store.broken = false
	_, err = p.Train(context.Background(), lyrics(), TrainOptions{})
	req.NoError(err)
	key, err = p.Save()
	req.NoError(err)
	req.Equal(DefaultPrimaryKey, key)
	found, err = reloaded.Load()
	req.NoError(err)
	req.True(found)
	got, _ = reloaded.Info()
	req.Equal(3, got.Version)
}

func TestPipeline_Save_NoModel(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	p := newPipeline(t, testConfig(1), mocks.NewMockIModelStore(ctrl), nil)

	_, err := p.Save()
	req.ErrorIs(err, errors.ErrModelNotBuilt)
}

func TestPipeline_Load_Fallback(t *testing.T) {
	req := require.New(t)
	source := newPipeline(t, testConfig(1), newBadgerStore(t), nil)
	_, err := source.Train(context.Background(), lyrics(), TrainOptions{})
	req.NoError(err)
	source.mu.RLock()
	blob := encodeBundle(source.bundle, time.Now())
	source.mu.RUnlock()
	want, _ := source.Info()

	tests := []struct {
		name       string
		primary    []byte
		primaryErr error
	}{
		{name: "Primary missing", primaryErr: fmt.Errorf("%w: %q", errors.ErrModelNotFound, DefaultPrimaryKey)},
		{name: "Primary corrupt", primary: blob[:10]},
		{name: "Primary unreadable", primaryErr: fmt.Errorf("io error")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			ctrl := gomock.NewController(t)
			store := mocks.NewMockIModelStore(ctrl)
			gomock.InOrder(
				store.EXPECT().Load(DefaultPrimaryKey).Return(tt.primary, tt.primaryErr),
				store.EXPECT().Load(DefaultFallbackKey).Return(blob, nil),
			)
			p := newPipeline(t, testConfig(1), store, nil)

			found, err := p.Load()
			req.NoError(err)
			req.True(found)
			got, ok := p.Info()
			req.True(ok)
			req.Equal(want, got)
		})
	}
}

func TestPipeline_Load_NothingStored(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t, testConfig(1), newBadgerStore(t), nil)

	// Given nothing stored and no vocabulary
	found, err := p.Load()
	req.NoError(err)
	req.False(found)
	_, ok := p.Info()
	req.False(ok)

	// Given a bound vocabulary, an untrained model is created for it
	vocab := p.BuildVocabulary(texts(lyrics()))
	req.NoError(p.BindVocabulary(vocab))
	found, err = p.Load()
	req.NoError(err)
	req.False(found)
	info, ok := p.Info()
	req.True(ok)
	req.False(info.Trained)
	req.Equal(vocab.Hash(), info.VocabularyHash)

	result, err := p.Predict("trash")
	req.NoError(err)
	req.GreaterOrEqual(result.Score, 0.0)
	req.LessOrEqual(result.Score, 1.0)
}

func TestPipeline_Load_BothFail(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIModelStore(ctrl)
	store.EXPECT().Load(DefaultPrimaryKey).Return([]byte{0xff}, nil)
	store.EXPECT().Load(DefaultFallbackKey).Return(nil, fmt.Errorf("io error"))
	p := newPipeline(t, testConfig(1), store, nil)

	found, err := p.Load()
	req.ErrorIs(err, errors.ErrPersistenceFailure)
	req.ErrorIs(err, errors.ErrCorruptModel)
	req.False(found)
	req.Zero(p.Backend().Allocated())
}

func TestPipeline_Load_VocabularyMismatch(t *testing.T) {
	req := require.New(t)
	store := newBadgerStore(t)
	source := newPipeline(t, testConfig(1), store, nil)
	_, err := source.Train(context.Background(), lyrics(), TrainOptions{})
	req.NoError(err)
	_, err = source.Save()
	req.NoError(err)

	// Given a pipeline bound to another vocabulary
	p := newPipeline(t, testConfig(1), store, nil)
	other := p.BuildVocabulary([]string{"rain rain cloud cloud", "storm storm"})
	req.NoError(p.BindVocabulary(other))

	found, err := p.Load()
	req.ErrorIs(err, errors.ErrVocabularyMismatch)
	req.False(found)
	_, ok := p.Info()
	req.False(ok)
	req.Zero(p.Backend().Allocated())

	// A trained pipeline refuses to be bound to a foreign vocabulary
	req.ErrorIs(source.BindVocabulary(other), errors.ErrVocabularyMismatch)
	req.ErrorIs(source.BindVocabulary(nil), errors.ErrVocabularyNotBuilt)
}

func TestPipeline_CreateModel(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t, testConfig(1), newBadgerStore(t), nil)
	req.ErrorIs(p.CreateModel(10), errors.ErrVocabularyNotBuilt)

	req.NoError(p.BindVocabulary(p.BuildVocabulary(texts(lyrics()))))
	req.NoError(p.CreateModel(500))
	info, ok := p.Info()
	req.True(ok)
	req.Equal("CNN Compact", info.Architecture)
	req.False(info.Trained)

	// Replacing the model frees the previous one
	allocated := p.Backend().Allocated()
	req.NoError(p.CreateModel(500))
	req.Equal(allocated, p.Backend().Allocated())

	p.Close()
	req.Zero(p.Backend().Allocated())
}

func TestPipeline_TrainAsync_Reentrancy(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t, testConfig(30), newBadgerStore(t), nil)

	job, err := p.TrainAsync(context.Background(), lyrics(), TrainOptions{})
	req.NoError(err)

	// While the job runs, every other mutation is refused
	_, err = p.Train(context.Background(), lyrics(), TrainOptions{})
	req.ErrorIs(err, errors.ErrTrainingInProgress)
	_, err = p.TrainAsync(context.Background(), lyrics(), TrainOptions{})
	req.ErrorIs(err, errors.ErrTrainingInProgress)
	_, err = p.Load()
	req.ErrorIs(err, errors.ErrTrainingInProgress)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	history, err := job.Wait(ctx)
	req.NoError(err)
	req.Len(history.Epochs, 30)
	<-job.Done()

	// Once done, training is accepted again
	_, err = p.Train(context.Background(), lyrics(), TrainOptions{})
	req.NoError(err)
}

func TestPipeline_TrainAsync_Cancel(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	runs := mocks.NewMockIRunRepository(ctrl)
	p := newPipeline(t, testConfig(50), newBadgerStore(t), runs)

	var recorded repositories.DiskRun
	runs.EXPECT().StoreRun(gomock.Any()).DoAndReturn(func(run repositories.DiskRun) error {
		recorded = run
		return nil
	}).Times(1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	job, err := p.TrainAsync(ctx, lyrics(), TrainOptions{
		OnEpochEnd: func(r domain.EpochReport) {
			if r.Epoch == 2 {
				cancel()
			}
		},
	})
	req.NoError(err)

	history, err := job.Wait(context.Background())
	req.ErrorIs(err, errors.ErrTrainingCancelled)
	req.Len(history.Epochs, 3)

	// Then the weights of the finished epochs are kept
	info, ok := p.Info()
	req.True(ok)
	req.True(info.Trained)
	req.Equal(1, info.Version)
	req.True(recorded.Cancelled)
	req.Equal(3, recorded.Epochs)
	req.Equal(12, recorded.Samples)
	req.Equal(info.Architecture, recorded.Architecture)
}

func TestPipeline_Train_CancelledBeforeFirstEpoch(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t, testConfig(5), newBadgerStore(t), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	history, err := p.Train(ctx, lyrics(), TrainOptions{})
	req.ErrorIs(err, errors.ErrTrainingCancelled)
	req.Empty(history.Epochs)
	_, ok := p.Info()
	req.False(ok)
	req.Zero(p.Backend().Allocated())
}

func TestPipeline_RecordFailureDoesNotFailTraining(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	runs := mocks.NewMockIRunRepository(ctrl)
	runs.EXPECT().StoreRun(gomock.Any()).Return(fmt.Errorf("badger closed"))
	p := newPipeline(t, testConfig(1), newBadgerStore(t), runs)

	_, err := p.Train(context.Background(), lyrics(), TrainOptions{})
	req.NoError(err)
}

func TestPipeline_ConcurrentPredict(t *testing.T) {
	req := require.New(t)
	p := newPipeline(t, testConfig(2), newBadgerStore(t), nil)
	_, err := p.Train(context.Background(), lyrics(), TrainOptions{})
	req.NoError(err)
	want, err := p.Predict("worthless trash")
	req.NoError(err)

	results := make(chan domain.PredictionResult, 32)
	for i := 0; i < cap(results); i++ {
		go func() {
			r, _ := p.Predict("worthless trash")
			results <- r
		}()
	}
	for i := 0; i < cap(results); i++ {
		req.Equal(want, <-results)
	}
}
