package main

import (
	"fmt"
	"log/slog"
	"lyrics-lab/classifier"
	"lyrics-lab/internal"
	"lyrics-lab/lexicon"
	"lyrics-lab/observability"
	"lyrics-lab/predictor"
	"lyrics-lab/repositories"
	"lyrics-lab/tensor"

	"github.com/dgraph-io/badger/v4"
	"github.com/mama165/sdk-go/logs"
	"github.com/spf13/cobra"
)

var (
	errConfig   = fmt.Errorf("configuration")
	errDataFile = fmt.Errorf("invalid dataset file")
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "lyricscore",
		Short: "Train and query the lyrics scoring model",
		Long: `lyricscore builds a vocabulary from labeled lyrics, trains a small
convolutional network on them and scores new lyrics on a 0-1 scale.
Configuration comes from the environment or a .env file.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().Bool("no-color", false, "disable coloured output")
	root.AddCommand(newTrainCmd(), newPredictCmd(), newInfoCmd(), newHistoryCmd(), newInspectCmd())
	return root
}

// app is everything a command needs, opened from the environment.
type app struct {
	config   internal.Config
	log      *slog.Logger
	db       *badger.DB
	backend  *tensor.Backend
	store    repositories.ModelStore
	runs     repositories.RunRepository
	monitor  *observability.MemoryMonitor
	pipeline *classifier.Pipeline
	colours  bool
}

func openApp(cmd *cobra.Command) (*app, error) {
	config, err := internal.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).WithLoggingLevel(badger.ERROR))
	if err != nil {
		return nil, fmt.Errorf("database opening failed: %w", err)
	}

	backend := tensor.NewBackend(config.MaxTensorElements)
	store := repositories.NewModelStore(db, log, config.MaxModelBytes)
	runs := repositories.NewRunRepository(db, log, config.LimitRuns)

	lex, err := lexicon.New(lexicon.DefaultTerms, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	pipeline, err := classifier.NewPipeline(log, config.Classifier(), backend, store, runs, predictor.New(log, lex))
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}

	noColor, _ := cmd.Flags().GetBool("no-color")
	return &app{
		config:   config,
		log:      log,
		db:       db,
		backend:  backend,
		store:    store,
		runs:     runs,
		monitor:  observability.NewMemoryMonitor(log, backend),
		pipeline: pipeline,
		colours:  !noColor,
	}, nil
}

func (a *app) Close() {
	a.pipeline.Close()
	a.log.Debug("Closing BadgerDB...")
	_ = a.db.Close()
}
