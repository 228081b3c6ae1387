package preprocess

import (
	"log/slog"
	"lyrics-lab/errors"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestBuilder(t *testing.T, cfg BuilderConfig) Builder {
	t.Helper()
	b, err := NewBuilder(cfg, logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	return b
}

func TestBuilder_Build_Scenario(t *testing.T) {
	req := require.New(t)
	builder := newTestBuilder(t, BuilderConfig{
		Capacity:    100,
		MinWordFreq: 1,
		Tokenizer:   TokenizerConfig{NormalizeCasing: true},
	})

	// Given a corpus where "you" appears twice
	vocab := builder.Build([]string{"I love you", "you are trash"})

	// Then reserved ids come first and frequent words get lower ids
	req.Equal([]string{PadToken, UnknownToken, "you", "love", "are", "trash"}, vocab.Tokens())
	you, ok := vocab.ID("you")
	req.True(ok)
	for _, rarer := range []string{"love", "are", "trash"} {
		id, ok := vocab.ID(rarer)
		req.True(ok)
		req.LessOrEqual(you, id)
	}

	// Then encoding known words never yields UNKNOWN
	enc, err := NewEncoder(vocab, 5)
	req.NoError(err)
	encoded := enc.Encode("you love trash")
	req.Equal([]int{2, 3, 5, 0, 0}, encoded.IDs)
	req.Zero(encoded.OOVCount)
	req.Equal(3, encoded.VocabularyUsed)
}

func TestBuilder_Build_MinFrequency(t *testing.T) {
	req := require.New(t)
	builder := newTestBuilder(t, BuilderConfig{
		Capacity:    100,
		MinWordFreq: 2,
		Tokenizer:   TokenizerConfig{NormalizeCasing: true},
	})

	vocab := builder.Build([]string{"I love you", "you are trash"})
	req.Equal([]string{PadToken, UnknownToken, "you"}, vocab.Tokens())

	stats := vocab.Stats()
	req.Equal(4, stats.TotalWords)
	req.Equal(1, stats.ValidWords)
	req.Equal(2, stats.MaxFrequency)
	req.InDelta(1.25, stats.AvgFrequency, 1e-12)
}

func TestBuilder_Build_Capacity(t *testing.T) {
	req := require.New(t)
	builder := newTestBuilder(t, BuilderConfig{
		Capacity:    4,
		MinWordFreq: 1,
		Tokenizer:   TokenizerConfig{NormalizeCasing: true},
	})

	// Given ties, the first seen word wins
	vocab := builder.Build([]string{"rain rain sun moon star", "star sun"})
	req.Equal(4, vocab.Len())
	req.Equal([]string{PadToken, UnknownToken, "rain", "sun"}, vocab.Tokens())
}

func TestBuilder_Build_Empty(t *testing.T) {
	req := require.New(t)
	builder := newTestBuilder(t, DefaultBuilderConfig())

	vocab := builder.Build(nil)
	req.Equal([]string{PadToken, UnknownToken}, vocab.Tokens())
	req.False(vocab.Ready())

	enc, err := NewEncoder(vocab, 3)
	req.NoError(err)
	req.Equal([]int{1, 1, 0}, enc.EncodeIDs("unknown words"))
}

func TestBuilder_Build_Deterministic(t *testing.T) {
	req := require.New(t)
	builder := newTestBuilder(t, BuilderConfig{Capacity: 50, MinWordFreq: 1, Tokenizer: DefaultTokenizerConfig()})
	corpus := []string{
		"Baby you're my sunshine, sunshine every day",
		"Dance dance dance until the morning light",
		"Trash talking all night, worthless words",
	}
	first := builder.Build(corpus)
	second := builder.Build(corpus)
	req.Equal(first.Tokens(), second.Tokens())
	req.Equal(first.Hash(), second.Hash())
}

func TestNewBuilder_InvalidConfig(t *testing.T) {
	req := require.New(t)
	_, err := NewBuilder(BuilderConfig{Capacity: 1, MinWordFreq: 1}, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.ErrorIs(err, errors.ErrInvalidVocabulary)

	_, err = NewBuilder(BuilderConfig{Capacity: 10, MinWordFreq: 0}, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.ErrorIs(err, errors.ErrInvalidVocabulary)
}
