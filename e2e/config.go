package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// E2E_DATA_DIR keeps the badger files between runs, a temporary directory is used when empty
	DataDir string `envconfig:"E2E_DATA_DIR"`
	// E2E_EPOCHS is the number of epochs of the training step
	Epochs int `envconfig:"E2E_EPOCHS" default:"150"`
	// E2E_VERBOSE logs at debug level instead of warn
	Verbose bool `envconfig:"E2E_VERBOSE" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
