package e2e

import (
	"fmt"
	"log/slog"
	"lyrics-lab/classifier"
	"lyrics-lab/lexicon"
	"lyrics-lab/predictor"
	"lyrics-lab/repositories"
	"lyrics-lab/tensor"

	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/suite"
)

type BasePipelineSuite struct {
	suite.Suite
	Config Config
	log    *slog.Logger
	db     *badger.DB
}

// SetupSuite loads the environment configuration and opens the store shared by every step
func (s *BasePipelineSuite) SetupSuite() {
	var err error
	s.Config, err = LoadConfig()
	s.Require().NoError(err)

	level := slog.LevelWarn
	if s.Config.Verbose {
		level = slog.LevelDebug
	}
	s.log = logs.GetLoggerFromLevel(level)

	dir := s.Config.DataDir
	if dir == "" {
		dir = s.T().TempDir()
	}
	s.db, err = badger.Open(badger.DefaultOptions(dir).WithLoggingLevel(badger.ERROR))
	s.Require().NoError(err)
}

func (s *BasePipelineSuite) TearDownSuite() {
	if s.db != nil {
		s.Require().NoError(s.db.Close())
	}
}

// Header prints a step title, coloured when E2E_COLOURS is set
func (s *BasePipelineSuite) Header(name string) {
	header := fmt.Sprintf("  ====== %s ======", name)
	if s.Config.Colours {
		header = color.New(color.BgBlack, color.FgGreen).Render(header)
	}
	s.T().Log(header)
}

func (s *BasePipelineSuite) Classifier() classifier.Config {
	cfg := classifier.DefaultConfig()
	cfg.MaxSequenceLength = 24
	cfg.Trainer.Epochs = s.Config.Epochs
	cfg.Trainer.ValidationSplit = 0
	return cfg
}

// WithPipeline provides a pipeline backed by the suite's store, closed once fn returns
func (s *BasePipelineSuite) WithPipeline(name string, fn func(p *classifier.Pipeline, runs repositories.RunRepository)) {
	s.Header(name)
	lex, err := lexicon.New(lexicon.DefaultTerms, s.log)
	s.Require().NoError(err)

	store := repositories.NewModelStore(s.db, s.log, 0)
	runs := repositories.NewRunRepository(s.db, s.log, nil)
	p, err := classifier.NewPipeline(s.log, s.Classifier(), tensor.NewBackend(0), store, runs, predictor.New(s.log, lex))
	s.Require().NoError(err)
	defer func() {
		p.Close()
		s.Require().Zero(p.Backend().Allocated(), "tensors leaked by %q", name)
	}()

	fn(p, runs)
}
