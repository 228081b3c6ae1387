package classifier

import (
	"lyrics-lab/architecture"
	"lyrics-lab/domain"
	"lyrics-lab/nn"
	"lyrics-lab/preprocess"

	"github.com/google/uuid"
)

// Bundle keeps a model together with the vocabulary and sequence length it was
// built for. It is the unit that is trained, queried and persisted.
type Bundle struct {
	ID      uuid.UUID
	Version int
	Spec    architecture.Spec
	Encoder preprocess.Encoder
	Model   *nn.Model
	Trained bool
}

func (b *Bundle) Vocabulary() *preprocess.Vocabulary {
	return b.Encoder.Vocabulary()
}

func (b *Bundle) Info() domain.ModelInfo {
	vocab := b.Vocabulary()
	return domain.ModelInfo{
		ID:                b.ID,
		Version:           b.Version,
		TotalParams:       b.Model.CountParams(),
		Layers:            len(b.Model.Layers()),
		Architecture:      b.Spec.Label,
		VocabSize:         vocab.Len(),
		VocabCapacity:     vocab.Capacity(),
		MaxSequenceLength: b.Encoder.MaxLen(),
		VocabularyHash:    vocab.Hash(),
		Trained:           b.Trained,
	}
}

func (b *Bundle) release() {
	if b != nil && b.Model != nil {
		b.Model.Release()
	}
}
