package preprocess

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"lyrics-lab/errors"
	"strings"
)

const (
	PadToken     = "<PAD>"
	UnknownToken = "<UNK>"
	PadID        = 0
	UnknownID    = 1
)

// Vocabulary maps normalized tokens to ids. PAD and UNKNOWN always hold ids 0 and 1.
// A Vocabulary is immutable once built: re-building from another corpus shifts id
// meanings and invalidates every sequence encoded before.
type Vocabulary struct {
	tokens    []string
	index     map[string]int
	capacity  int
	tokenizer Tokenizer
	hash      string
	stats     Stats
}

// Stats summarizes the corpus a vocabulary was built from.
type Stats struct {
	TotalWords   int
	ValidWords   int
	AvgFrequency float64
	MaxFrequency int
	MinFrequency int
	Languages    map[string]int
}

// NewVocabulary restores a vocabulary from tokens listed in id order, as stored
// alongside a model. The reserved entries must come first.
func NewVocabulary(tokens []string, capacity int, cfg TokenizerConfig) (*Vocabulary, error) {
	if len(tokens) < 2 || tokens[PadID] != PadToken || tokens[UnknownID] != UnknownToken {
		return nil, fmt.Errorf("%w: reserved tokens missing", errors.ErrVocabularyMismatch)
	}
	if capacity < len(tokens) {
		return nil, fmt.Errorf("%w: %d tokens exceed capacity %d", errors.ErrVocabularyMismatch, len(tokens), capacity)
	}
	index := make(map[string]int, len(tokens))
	for id, token := range tokens {
		if _, dup := index[token]; dup {
			return nil, fmt.Errorf("%w: duplicate token %q", errors.ErrVocabularyMismatch, token)
		}
		index[token] = id
	}
	return newVocabulary(append([]string(nil), tokens...), index, capacity, NewTokenizer(cfg), Stats{}), nil
}

func newVocabulary(tokens []string, index map[string]int, capacity int, tokenizer Tokenizer, stats Stats) *Vocabulary {
	v := &Vocabulary{
		tokens:    tokens,
		index:     index,
		capacity:  capacity,
		tokenizer: tokenizer,
		stats:     stats,
	}
	v.hash = computeHash(tokens, tokenizer.Config())
	return v
}

// computeHash fingerprints the id assignment and the tokenizer rules, both of which
// change the meaning of an encoded sequence.
func computeHash(tokens []string, cfg TokenizerConfig) string {
	h := sha256.New()
	fmt.Fprintf(h, "casing=%t;stop=%t;unicode=%t\n", cfg.NormalizeCasing, cfg.RemoveStopWords, cfg.UnicodeLetters)
	h.Write([]byte(strings.Join(tokens, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

// ID returns the id of token, or UnknownID when absent.
func (v *Vocabulary) ID(token string) (int, bool) {
	id, ok := v.index[token]
	if !ok {
		return UnknownID, false
	}
	return id, true
}

func (v *Vocabulary) Token(id int) string {
	if id < 0 || id >= len(v.tokens) {
		return UnknownToken
	}
	return v.tokens[id]
}

// Len is the number of assigned ids, reserved entries included.
func (v *Vocabulary) Len() int {
	return len(v.tokens)
}

func (v *Vocabulary) Capacity() int {
	return v.capacity
}

func (v *Vocabulary) Tokens() []string {
	return append([]string(nil), v.tokens...)
}

func (v *Vocabulary) Tokenizer() Tokenizer {
	return v.tokenizer
}

func (v *Vocabulary) Hash() string {
	return v.hash
}

func (v *Vocabulary) Stats() Stats {
	return v.stats
}

// Ready is false for the degenerate PAD/UNKNOWN-only vocabulary.
func (v *Vocabulary) Ready() bool {
	return v.Len() > 2
}
