package lexicon

import (
	"log/slog"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// DefaultTerms are the flagged words shipped with the classifier. They are only
// reported next to a prediction and never change its score.
var DefaultTerms = []string{
	"bitch", "bitches", "slut", "sluts", "whore", "whores", "hoe", "hoes",
	"skank", "cunt", "pussy", "thot", "ratchet", "worthless", "useless", "trash",
}

// Lexicon finds flagged terms in lyrics, tolerating case, leet speak and
// punctuation inserted between letters. A term only counts as a whole word.
type Lexicon struct {
	matcher *goahocorasick.Machine
	log     *slog.Logger
}

type textMapping struct {
	original   []rune
	normalized []rune
	origIdx    []int
}

// Match is one occurrence of a term, with rune offsets into the original text.
type Match struct {
	Term  string
	Start int
	End   int
}

func New(terms []string, log *slog.Logger) (Lexicon, error) {
	patterns := make([][]rune, 0, len(terms))
	for _, term := range terms {
		if p := normalizeRunes([]rune(term)); len(p) > 0 {
			patterns = append(patterns, p)
		}
	}
	log.Debug("Lexicon built", "terms", len(patterns))
	if len(patterns) == 0 {
		return Lexicon{log: log}, nil
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return Lexicon{}, err
	}
	return Lexicon{matcher: m, log: log}, nil
}

// Matches returns every occurrence of a term, in order of appearance.
func (l Lexicon) Matches(text string) []Match {
	if l.matcher == nil {
		return nil
	}
	mapping := normalize(text)
	if len(mapping.normalized) == 0 {
		return nil
	}
	var out []Match
	for _, span := range l.matcher.MultiPatternSearch(mapping.normalized, false) {
		start, end := span.Pos, span.Pos+len(span.Word)
		if start < 0 || end > len(mapping.origIdx) {
			continue
		}
		m := Match{
			Term:  string(span.Word),
			Start: mapping.origIdx[start],
			End:   mapping.origIdx[end-1] + 1,
		}
		if !standalone(mapping.original, m.Start, m.End) {
			continue
		}
		out = append(out, m)
	}
	return out
}

// Find lists the distinct terms present in text, in order of first appearance.
func (l Lexicon) Find(text string) []string {
	var terms []string
	seen := make(map[string]struct{})
	for _, m := range l.Matches(text) {
		if _, ok := seen[m.Term]; ok {
			continue
		}
		seen[m.Term] = struct{}{}
		terms = append(terms, m.Term)
	}
	return terms
}

// Mask replaces every matched span with mask, keeping the rest of the text intact.
func (l Lexicon) Mask(text string, mask rune) string {
	matches := l.Matches(text)
	if len(matches) == 0 {
		return text
	}
	runes := []rune(text)
	for _, m := range matches {
		for i := m.Start; i < m.End; i++ {
			runes[i] = mask
		}
	}
	return string(runes)
}

func normalize(input string) textMapping {
	orig := []rune(input)
	mapping := textMapping{
		original:   orig,
		normalized: make([]rune, 0, len(orig)),
		origIdx:    make([]int, 0, len(orig)),
	}
	for i, r := range orig {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		mapping.normalized = append(mapping.normalized, unicode.ToLower(clean))
		mapping.origIdx = append(mapping.origIdx, i)
	}
	return mapping
}

// standalone reports whether text[start:end] is a word of its own: no letter or
// digit touches it on either side, and when it spans whitespace it is spelled
// out one character per chunk ("t r a s h"), not glued from several words.
func standalone(text []rune, start, end int) bool {
	if start > 0 && isWordRune(text[start-1]) {
		return false
	}
	if end < len(text) && isWordRune(text[end]) {
		return false
	}
	spaced, run, longest := false, 0, 0
	for _, r := range text[start:end] {
		switch {
		case unicode.IsSpace(r):
			spaced = true
			run = 0
		case isWordRune(r):
			run++
			longest = max(longest, run)
		}
	}
	return !spaced || longest <= 1
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

func normalizeRunes(input []rune) []rune {
	out := make([]rune, 0, len(input))
	for _, r := range input {
		clean := simplifyRune(r)
		if isNoise(clean) {
			continue
		}
		out = append(out, unicode.ToLower(clean))
	}
	return out
}

// simplifyRune maps leet speak characters back to letters.
func simplifyRune(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3', '€':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	case '7':
		return 't'
	default:
		return r
	}
}

func isNoise(r rune) bool {
	return unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r)
}
