package internal

import (
	"fmt"
	"lyrics-lab/architecture"
	"lyrics-lab/classifier"
	"lyrics-lab/preprocess"
	"lyrics-lab/trainer"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

var validate = validator.New()

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true" validate:"required"`
	LogLevel       string `env:"LOG_LEVEL,default=INFO"`

	VocabSize         int  `env:"VOCAB_SIZE,default=5000" validate:"gte=2"`
	MaxSequenceLength int  `env:"MAX_SEQUENCE_LENGTH,default=100" validate:"gt=0"`
	MinWordFreq       int  `env:"MIN_WORD_FREQ,default=2" validate:"gte=1"`
	RemoveStopWords   bool `env:"REMOVE_STOP_WORDS,default=true"`
	UnicodeLetters    bool `env:"UNICODE_LETTERS,default=false"`

	Architecture    string  `env:"ARCHITECTURE,default=auto" validate:"oneof=auto small medium large"`
	Epochs          int     `env:"EPOCHS,default=15" validate:"gt=0"`
	BatchSize       int     `env:"BATCH_SIZE,default=4" validate:"gt=0"`
	ValidationSplit float64 `env:"VALIDATION_SPLIT,default=0.2" validate:"gte=0,lt=1"`
	MinSamples      int     `env:"MIN_SAMPLES,default=10" validate:"gte=1"`
	Seed            uint64  `env:"SEED,default=42"`
	Workers         int     `env:"WORKERS,default=0" validate:"gte=0"`

	MaxTensorElements int           `env:"MAX_TENSOR_ELEMENTS,default=0" validate:"gte=0"`
	MetricInterval    time.Duration `env:"METRIC_INTERVAL,default=5s"`

	PrimaryModelKey  string `env:"PRIMARY_MODEL_KEY,default=lyrics-cnn-ultra-compact" validate:"required"`
	FallbackModelKey string `env:"FALLBACK_MODEL_KEY,default=lyrics-cnn-ultra-compact-mini" validate:"required,nefield=PrimaryModelKey"`
	MaxModelBytes    int    `env:"MAX_MODEL_BYTES,default=0" validate:"gte=0"`
	LimitRuns        *int   `env:"LIMIT_RUNS"`
}

// Load reads an optional .env file, then the environment.
func Load() (Config, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return config, nil
}

// Classifier maps the environment onto the pipeline configuration.
func (c Config) Classifier() classifier.Config {
	return classifier.Config{
		Builder: preprocess.BuilderConfig{
			Capacity:    c.VocabSize,
			MinWordFreq: c.MinWordFreq,
			Tokenizer: preprocess.TokenizerConfig{
				NormalizeCasing: true,
				RemoveStopWords: c.RemoveStopWords,
				UnicodeLetters:  c.UnicodeLetters,
			},
		},
		MaxSequenceLength: c.MaxSequenceLength,
		Architecture:      architecture.Preset(c.Architecture),
		Trainer: trainer.Config{
			Epochs:          c.Epochs,
			BatchSize:       c.BatchSize,
			ValidationSplit: c.ValidationSplit,
			MinSamples:      c.MinSamples,
			Shuffle:         true,
			Seed:            c.Seed,
			Workers:         c.Workers,
		},
		Seed:        c.Seed,
		PrimaryKey:  c.PrimaryModelKey,
		FallbackKey: c.FallbackModelKey,
	}
}
