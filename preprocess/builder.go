package preprocess

import (
	"fmt"
	"log/slog"
	"lyrics-lab/errors"
	"sort"
	"strings"

	"github.com/abadojack/whatlanggo"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

type BuilderConfig struct {
	Capacity    int `validate:"gte=2"`
	MinWordFreq int `validate:"gte=1"`
	Tokenizer   TokenizerConfig
}

func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{Capacity: 5000, MinWordFreq: 2, Tokenizer: DefaultTokenizerConfig()}
}

type Builder struct {
	cfg       BuilderConfig
	tokenizer Tokenizer
	log       *slog.Logger
}

func NewBuilder(cfg BuilderConfig, log *slog.Logger) (Builder, error) {
	if err := validate.Struct(cfg); err != nil {
		return Builder{}, fmt.Errorf("%w: %v", errors.ErrInvalidVocabulary, err)
	}
	return Builder{cfg: cfg, tokenizer: NewTokenizer(cfg.Tokenizer), log: log}, nil
}

type wordCount struct {
	word  string
	count int
}

// Build counts token frequencies over the corpus, drops tokens seen fewer than
// MinWordFreq times and keeps the Capacity-2 most frequent ones. Ties keep the
// order in which tokens were first seen. An empty corpus yields PAD and UNKNOWN only.
func (b Builder) Build(corpus []string) *Vocabulary {
	counts := make(map[string]int)
	var order []string
	for _, text := range corpus {
		for _, word := range b.tokenizer.Tokenize(text) {
			if _, seen := counts[word]; !seen {
				order = append(order, word)
			}
			counts[word]++
		}
	}

	valid := make([]wordCount, 0, len(order))
	for _, word := range order {
		if counts[word] >= b.cfg.MinWordFreq {
			valid = append(valid, wordCount{word: word, count: counts[word]})
		}
	}
	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].count > valid[j].count
	})
	if limit := b.cfg.Capacity - 2; len(valid) > limit {
		valid = valid[:limit]
	}

	tokens := make([]string, 0, len(valid)+2)
	tokens = append(tokens, PadToken, UnknownToken)
	index := map[string]int{PadToken: PadID, UnknownToken: UnknownID}
	for _, wc := range valid {
		index[wc.word] = len(tokens)
		tokens = append(tokens, wc.word)
	}

	stats := b.stats(corpus, counts, order)
	vocabulary := newVocabulary(tokens, index, b.cfg.Capacity, b.tokenizer, stats)

	if b.log != nil {
		top := lo.Map(valid[:min(10, len(valid))], func(wc wordCount, _ int) string {
			return fmt.Sprintf("%s(%d)", wc.word, wc.count)
		})
		b.log.Info("Vocabulary built",
			"size", vocabulary.Len(),
			"capacity", b.cfg.Capacity,
			"min_word_freq", b.cfg.MinWordFreq,
			"distinct_words", stats.TotalWords,
			"languages", stats.Languages,
			"top", strings.Join(top, " "))
	}
	return vocabulary
}

func (b Builder) stats(corpus []string, counts map[string]int, order []string) Stats {
	stats := Stats{
		TotalWords:   len(order),
		MinFrequency: b.cfg.MinWordFreq,
		Languages:    make(map[string]int),
	}
	total := 0
	for _, word := range order {
		c := counts[word]
		total += c
		stats.MaxFrequency = max(stats.MaxFrequency, c)
		if c >= b.cfg.MinWordFreq {
			stats.ValidWords++
		}
	}
	if stats.TotalWords > 0 {
		stats.AvgFrequency = float64(total) / float64(stats.TotalWords)
	}
	for _, text := range corpus {
		if strings.TrimSpace(text) == "" {
			continue
		}
		info := whatlanggo.Detect(text)
		lang := info.Lang.Iso6391()
		if lang == "" {
			lang = "unknown"
		}
		stats.Languages[lang]++
	}
	return stats
}
