package preprocess

import (
	"fmt"
	"lyrics-lab/errors"
	"strings"
)

// Encoded is a fixed-length id sequence plus diagnostics about the source text.
type Encoded struct {
	IDs            []int
	TokenCount     int
	OOVCount       int
	VocabularyUsed int
	Truncated      bool
}

// Encoder binds a vocabulary to a sequence length. Training and inference must go
// through the same Encoder for ids to keep their meaning.
type Encoder struct {
	vocabulary *Vocabulary
	maxLen     int
}

func NewEncoder(vocabulary *Vocabulary, maxLen int) (Encoder, error) {
	if vocabulary == nil {
		return Encoder{}, errors.ErrVocabularyNotBuilt
	}
	if maxLen <= 0 {
		return Encoder{}, fmt.Errorf("%w: max sequence length must be positive, got %d", errors.ErrInvalidArchitecture, maxLen)
	}
	return Encoder{vocabulary: vocabulary, maxLen: maxLen}, nil
}

func (e Encoder) Vocabulary() *Vocabulary {
	return e.vocabulary
}

func (e Encoder) MaxLen() int {
	return e.maxLen
}

// Encode maps text to exactly MaxLen ids. Unknown tokens become UnknownID.
// Sequences longer than MaxLen keep their first MaxLen-MaxLen/2 and last MaxLen/2
// ids so both the opening and the closing of long lyrics survive. Shorter sequences
// are right-padded with PadID.
func (e Encoder) Encode(text string) Encoded {
	words := e.vocabulary.Tokenizer().Tokenize(text)
	ids := make([]int, len(words))
	oov := 0
	used := make(map[int]struct{})
	for i, w := range words {
		id, ok := e.vocabulary.ID(w)
		if !ok {
			oov++
		} else {
			used[id] = struct{}{}
		}
		ids[i] = id
	}

	return Encoded{
		IDs:            fit(ids, e.maxLen),
		TokenCount:     len(words),
		OOVCount:       oov,
		VocabularyUsed: len(used),
		Truncated:      len(ids) > e.maxLen,
	}
}

// EncodeIDs is Encode without diagnostics.
func (e Encoder) EncodeIDs(text string) []int {
	return e.Encode(text).IDs
}

func fit(ids []int, maxLen int) []int {
	out := make([]int, maxLen)
	if len(ids) <= maxLen {
		copy(out, ids)
		return out
	}
	tail := maxLen / 2
	head := maxLen - tail
	copy(out, ids[:head])
	copy(out[head:], ids[len(ids)-tail:])
	return out
}

// Decode renders ids back to tokens, skipping padding.
func (e Encoder) Decode(ids []int) string {
	words := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == PadID {
			continue
		}
		words = append(words, e.vocabulary.Token(id))
	}
	return strings.Join(words, " ")
}
