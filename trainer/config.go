package trainer

import (
	"fmt"
	"lyrics-lab/errors"
	"runtime"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Config struct {
	Epochs          int     `validate:"gt=0"`
	BatchSize       int     `validate:"gt=0"`
	ValidationSplit float64 `validate:"gte=0,lt=1"`
	MinSamples      int     `validate:"gte=1"`
	Shuffle         bool
	Seed            uint64
	// Workers bounds the goroutines computing one batch. 0 means GOMAXPROCS.
	Workers int `validate:"gte=0"`
}

func DefaultConfig() Config {
	return Config{
		Epochs:          15,
		BatchSize:       4,
		ValidationSplit: 0.2,
		MinSamples:      10,
		Shuffle:         true,
		Seed:            42,
	}
}

func (c Config) validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid trainer config: %w", err)
	}
	return nil
}

func (c Config) workers() int {
	if c.Workers > 0 {
		return c.Workers
	}
	return runtime.GOMAXPROCS(0)
}

// splitAt returns the number of leading samples used for training. The trailing
// ones are held out for validation.
func (c Config) splitAt(n int) int {
	return int(float64(n) * (1 - c.ValidationSplit))
}

func checkCount(n, minSamples int) error {
	if n < minSamples {
		return fmt.Errorf("%w: %d labeled samples, at least %d required", errors.ErrInsufficientData, n, minSamples)
	}
	return nil
}
