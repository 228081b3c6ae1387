package preprocess

import (
	"strings"
	"unicode"
)

const (
	minTokenLength = 2
	maxTokenLength = 20
)

type TokenizerConfig struct {
	NormalizeCasing bool
	RemoveStopWords bool
	// UnicodeLetters keeps non-ASCII letters and digits. When false only ASCII word
	// characters survive, so "coração" becomes "cora".
	UnicodeLetters bool
}

func DefaultTokenizerConfig() TokenizerConfig {
	return TokenizerConfig{NormalizeCasing: true, RemoveStopWords: true}
}

// Tokenizer turns raw text into normalized word tokens. It holds no state besides
// its configuration, so the same input always yields the same tokens.
type Tokenizer struct {
	cfg TokenizerConfig
}

func NewTokenizer(cfg TokenizerConfig) Tokenizer {
	return Tokenizer{cfg: cfg}
}

func (t Tokenizer) Config() TokenizerConfig {
	return t.cfg
}

// Tokenize lowercases, replaces every rune that is not a word character, whitespace,
// hyphen or apostrophe by a space, splits on whitespace, drops stop words and
// keeps tokens of 2 to 20 characters.
func (t Tokenizer) Tokenize(text string) []string {
	if t.cfg.NormalizeCasing {
		text = strings.ToLower(text)
	}
	cleaned := strings.Map(func(r rune) rune {
		if t.keep(r) {
			return r
		}
		return ' '
	}, text)

	words := strings.Fields(cleaned)
	tokens := words[:0]
	for _, w := range words {
		if t.cfg.RemoveStopWords && IsStopWord(w) {
			continue
		}
		if n := len([]rune(w)); n < minTokenLength || n > maxTokenLength {
			continue
		}
		tokens = append(tokens, w)
	}
	return tokens
}

func (t Tokenizer) keep(r rune) bool {
	switch {
	case r == '-' || r == '\'' || r == '_':
		return true
	case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
		return true
	case unicode.IsSpace(r):
		return true
	case t.cfg.UnicodeLetters && (unicode.IsLetter(r) || unicode.IsDigit(r)):
		return true
	}
	return false
}
