package predictor

import (
	"fmt"
	"log/slog"
	"lyrics-lab/domain"
	"lyrics-lab/errors"
	"lyrics-lab/lexicon"
	"lyrics-lab/nn"
	"lyrics-lab/preprocess"
)

type Predictor struct {
	log     *slog.Logger
	lexicon lexicon.Lexicon
}

func New(log *slog.Logger, lex lexicon.Lexicon) *Predictor {
	return &Predictor{log: log, lexicon: lex}
}

// Predict scores text with model. enc must be the encoder the model was trained
// with: its vocabulary size and sequence length are checked against the model.
func (p *Predictor) Predict(model *nn.Model, enc preprocess.Encoder, text string) (domain.PredictionResult, error) {
	if model == nil {
		return domain.PredictionResult{}, errors.ErrModelNotBuilt
	}
	if enc.Vocabulary() == nil {
		return domain.PredictionResult{}, errors.ErrVocabularyNotBuilt
	}
	if enc.MaxLen() != model.InputLength() || enc.Vocabulary().Len() > model.VocabSize() {
		return domain.PredictionResult{}, fmt.Errorf("%w: encoder produces %d ids over %d tokens, model expects %d ids over %d tokens",
			errors.ErrVocabularyMismatch, enc.MaxLen(), enc.Vocabulary().Len(), model.InputLength(), model.VocabSize())
	}

	encoded := enc.Encode(text)
	raw, err := model.Predict(encoded.IDs)
	if err != nil {
		return domain.PredictionResult{}, err
	}

	result := domain.NewPredictionResult(raw)
	result.Flagged = p.lexicon.Find(text)
	p.log.Debug("Prediction",
		"score", result.Score,
		"category", result.Category,
		"tokens", encoded.TokenCount,
		"oov", encoded.OOVCount,
		"truncated", encoded.Truncated)
	return result, nil
}
