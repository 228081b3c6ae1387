package preprocess

import (
	"lyrics-lab/errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewVocabulary(t *testing.T) {
	cfg := DefaultTokenizerConfig()
	tests := []struct {
		name     string
		tokens   []string
		capacity int
		err      error
	}{
		{name: "Valid", tokens: []string{PadToken, UnknownToken, "love"}, capacity: 5},
		{name: "Reserved tokens missing", tokens: []string{"love", "hate"}, capacity: 5, err: errors.ErrVocabularyMismatch},
		{name: "Reserved tokens swapped", tokens: []string{UnknownToken, PadToken}, capacity: 5, err: errors.ErrVocabularyMismatch},
		{name: "Duplicate", tokens: []string{PadToken, UnknownToken, "love", "love"}, capacity: 5, err: errors.ErrVocabularyMismatch},
		{name: "Over capacity", tokens: []string{PadToken, UnknownToken, "love"}, capacity: 2, err: errors.ErrVocabularyMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			vocab, err := NewVocabulary(tt.tokens, tt.capacity, cfg)
			if tt.err != nil {
				req.ErrorIs(err, tt.err)
				return
			}
			req.NoError(err)
			req.Equal(tt.tokens, vocab.Tokens())
			req.Equal(tt.capacity, vocab.Capacity())
		})
	}
}

func TestVocabulary_Lookup(t *testing.T) {
	req := require.New(t)
	vocab, err := NewVocabulary([]string{PadToken, UnknownToken, "love", "trash"}, 10, DefaultTokenizerConfig())
	req.NoError(err)

	id, ok := vocab.ID("trash")
	req.True(ok)
	req.Equal(3, id)

	id, ok = vocab.ID("missing")
	req.False(ok)
	req.Equal(UnknownID, id)

	req.Equal("love", vocab.Token(2))
	req.Equal(UnknownToken, vocab.Token(42))
	req.Equal(UnknownToken, vocab.Token(-1))
	req.True(vocab.Ready())
}

func TestVocabulary_Hash(t *testing.T) {
	req := require.New(t)
	tokens := []string{PadToken, UnknownToken, "love", "trash"}

	a, err := NewVocabulary(tokens, 10, DefaultTokenizerConfig())
	req.NoError(err)
	b, err := NewVocabulary(tokens, 20, DefaultTokenizerConfig())
	req.NoError(err)
	req.Equal(a.Hash(), b.Hash(), "capacity does not change id meaning")

	swapped, err := NewVocabulary([]string{PadToken, UnknownToken, "trash", "love"}, 10, DefaultTokenizerConfig())
	req.NoError(err)
	req.NotEqual(a.Hash(), swapped.Hash())

	otherRules, err := NewVocabulary(tokens, 10, TokenizerConfig{NormalizeCasing: true})
	req.NoError(err)
	req.NotEqual(a.Hash(), otherRules.Hash())

	// Tokens returns a copy
	a.Tokens()[2] = "changed"
	req.Equal("love", a.Token(2))
}
