package classifier

import (
	"fmt"
	"lyrics-lab/architecture"
	"lyrics-lab/preprocess"
	"lyrics-lab/trainer"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

const (
	DefaultPrimaryKey  = "lyrics-cnn-ultra-compact"
	DefaultFallbackKey = "lyrics-cnn-ultra-compact-mini"
)

type Config struct {
	Builder           preprocess.BuilderConfig
	MaxSequenceLength int                 `validate:"gt=0"`
	Architecture      architecture.Preset `validate:"oneof=auto small medium large"`
	Trainer           trainer.Config
	// Seed drives weight initialization. Training randomness uses Trainer.Seed.
	Seed        uint64
	PrimaryKey  string `validate:"required"`
	FallbackKey string `validate:"required,nefield=PrimaryKey"`
}

func DefaultConfig() Config {
	return Config{
		Builder:           preprocess.DefaultBuilderConfig(),
		MaxSequenceLength: 100,
		Architecture:      architecture.Auto,
		Trainer:           trainer.DefaultConfig(),
		Seed:              42,
		PrimaryKey:        DefaultPrimaryKey,
		FallbackKey:       DefaultFallbackKey,
	}
}

func (c Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid classifier config: %w", err)
	}
	return nil
}
