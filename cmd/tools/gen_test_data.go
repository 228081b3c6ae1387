package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"lyrics-lab/domain"
	"math"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strings"

	"github.com/samber/lo"
)

// Word pools the synthetic lyrics are drawn from. Offensive words push the label
// up, the neutral ones keep it low.
var (
	offensive = []string{"trash", "worthless", "stupid", "bitch", "useless", "hoe", "skank", "ratchet"}
	neutral   = []string{
		"sunshine", "beautiful", "dance", "heart", "happy", "love", "night", "river",
		"summer", "dream", "smile", "light", "ocean", "home", "morning", "star",
		"saudade", "coração", "amor", "praia", "sorriso", "lua",
	}
	filler = []string{"you", "are", "and", "the", "my", "baby", "oh", "yeah", "tonight", "forever"}
)

func main() {
	outputDir := flag.String("out", "./test_data", "destination directory")
	count := flag.Int("count", 200, "number of samples")
	seed := flag.Uint64("seed", 42, "random seed")
	flag.Parse()

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot create %s: %v\n", *outputDir, err)
		os.Exit(1)
	}

	r := rand.New(rand.NewPCG(*seed, *seed))
	samples := make([]domain.Sample, *count)
	for i := range samples {
		samples[i] = lyric(r)
	}

	balance := domain.NewDatasetBalance(samples)
	path := filepath.Join(*outputDir, "lyrics.json")
	data, err := json.MarshalIndent(samples, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot encode samples: %v\n", err)
		os.Exit(1)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot write %s: %v\n", path, err)
		os.Exit(1)
	}
	fmt.Printf("%d samples written to %s (low %d, mid %d, high %d)\n",
		len(samples), path, balance.LowCount, balance.MidCount, balance.HighCount)
}

// lyric draws a line of 4 to 12 words. Its score is the share of offensive words,
// stretched so that two of them already read as explicit, plus a little noise.
func lyric(r *rand.Rand) domain.Sample {
	length := 4 + r.IntN(9)
	hits := 0
	if r.IntN(2) == 0 {
		hits = 1 + r.IntN(min(4, length))
	}
	words := make([]string, 0, length)
	for i := 0; i < hits; i++ {
		words = append(words, pick(r, offensive))
	}
	for len(words) < length {
		if r.IntN(3) == 0 {
			words = append(words, pick(r, filler))
		} else {
			words = append(words, pick(r, neutral))
		}
	}
	r.Shuffle(len(words), func(i, j int) { words[i], words[j] = words[j], words[i] })

	score := math.Min(1, float64(hits)/2*0.8) + (r.Float64()-0.5)*0.1
	return domain.Sample{
		Text:  strings.Join(lo.Map(words, func(w string, i int) string { return capitalize(w, i) }), " "),
		Score: math.Round(domain.ClampScore(score)*100) / 100,
	}
}

func pick(r *rand.Rand, pool []string) string {
	return pool[r.IntN(len(pool))]
}

func capitalize(word string, i int) string {
	if i > 0 || word == "" {
		return word
	}
	runes := []rune(word)
	return strings.ToUpper(string(runes[0])) + string(runes[1:])
}
