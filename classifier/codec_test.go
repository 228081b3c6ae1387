package classifier

import (
	"log/slog"
	"lyrics-lab/architecture"
	"lyrics-lab/errors"
	"lyrics-lab/preprocess"
	"lyrics-lab/tensor"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func newTestBundle(t *testing.T, backend *tensor.Backend) *Bundle {
	t.Helper()
	req := require.New(t)
	builder, err := preprocess.NewBuilder(preprocess.DefaultBuilderConfig(), nil)
	req.NoError(err)
	enc, err := preprocess.NewEncoder(builder.Build(texts(lyrics())), 20)
	req.NoError(err)
	spec, err := architecture.SpecFor(architecture.Small)
	req.NoError(err)
	model, err := architecture.Create(backend, enc.Vocabulary().Len(), 20, spec, 9, nil)
	req.NoError(err)
	b := &Bundle{ID: uuid.New(), Version: 3, Spec: spec, Encoder: enc, Model: model, Trained: true}
	t.Cleanup(b.release)
	return b
}

func TestCodec_RoundTrip(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	original := newTestBundle(t, tensor.NewBackend(0))

	blob := encodeBundle(original, time.Now())
	backend := tensor.NewBackend(0)
	restored, err := decodeBundle(blob, backend, log)
	req.NoError(err)
	defer restored.release()

	req.Equal(original.Info(), restored.Info())
	req.Equal(original.Spec, restored.Spec)
	req.Equal(original.Vocabulary().Tokens(), restored.Vocabulary().Tokens())
	req.Equal(original.Vocabulary().Tokenizer().Config(), restored.Vocabulary().Tokenizer().Config())
	for i, p := range original.Model.Params() {
		req.Equal(p.Value.Data(), restored.Model.Params()[i].Value.Data(), p.Name)
	}

	// Then predictions are bit for bit the same
	for _, s := range lyrics() {
		ids := original.Encoder.Encode(s.Text).IDs
		want, err := original.Model.Predict(ids)
		req.NoError(err)
		got, err := restored.Model.Predict(restored.Encoder.Encode(s.Text).IDs)
		req.NoError(err)
		req.Equal(want, got, s.Text)
	}
}

func TestCodec_Rejects(t *testing.T) {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	blob := encodeBundle(newTestBundle(t, tensor.NewBackend(0)), time.Now())
	extraParam := func() []byte {
		var msg []byte
		msg = appendString(msg, paramName, "ghost/kernel")
		return appendMessage(append([]byte(nil), blob...), fieldParam, msg)
	}

	tests := []struct {
		name    string
		blob    []byte
		wantErr error
	}{
		{name: "Truncated", blob: blob[:len(blob)/2], wantErr: errors.ErrCorruptModel},
		{name: "Garbage", blob: []byte{0xff, 0xff, 0xff, 0xff}, wantErr: errors.ErrCorruptModel},
		{name: "Empty", blob: nil, wantErr: errors.ErrCorruptModel},
		{name: "Unknown format version", blob: appendVarint(append([]byte(nil), blob...), fieldFormat, 99), wantErr: errors.ErrCorruptModel},
		{name: "Tampered fingerprint", blob: appendString(append([]byte(nil), blob...), fieldHash, "deadbeef"), wantErr: errors.ErrVocabularyMismatch},
		{name: "Extra parameter", blob: extraParam(), wantErr: errors.ErrCorruptModel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			backend := tensor.NewBackend(0)
			b, err := decodeBundle(tt.blob, backend, log)
			req.ErrorIs(err, tt.wantErr)
			req.Nil(b)
			req.Zero(backend.Allocated())
		})
	}
}

func TestCodec_SkipsUnknownFields(t *testing.T) {
	req := require.New(t)
	original := newTestBundle(t, tensor.NewBackend(0))
	blob := encodeBundle(original, time.Now())
	blob = protowire.AppendTag(blob, 99, protowire.Fixed32Type)
	blob = protowire.AppendFixed32(blob, 7)

	restored, err := decodeBundle(blob, tensor.NewBackend(0), logs.GetLoggerFromLevel(slog.LevelDebug))
	req.NoError(err)
	defer restored.release()
	req.Equal(original.ID, restored.ID)
	req.Equal(3, restored.Version)
	req.True(restored.Trained)
}

func TestDescribe(t *testing.T) {
	req := require.New(t)
	b := newTestBundle(t, tensor.NewBackend(0))
	savedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	summary, err := Describe(encodeBundle(b, savedAt))
	req.NoError(err)
	req.Equal(BlobSummary{
		ID:                b.ID,
		Version:           3,
		Architecture:      "CNN Ultra-Compact",
		VocabSize:         b.Vocabulary().Len(),
		MaxSequenceLength: 20,
		Params:            b.Model.CountParams(),
		SavedAt:           savedAt,
		Trained:           true,
	}, summary)

	_, err = Describe([]byte("not a model"))
	req.ErrorIs(err, errors.ErrCorruptModel)
}
