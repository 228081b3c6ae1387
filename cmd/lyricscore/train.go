package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"lyrics-lab/classifier"
	"lyrics-lab/domain"
	apperrors "lyrics-lab/errors"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

func newTrainCmd() *cobra.Command {
	var (
		dataPath string
		fresh    bool
	)
	cmd := &cobra.Command{
		Use:   "train",
		Short: "Train the model on a JSON array of {text, score} samples",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			samples, err := readSamples(dataPath)
			if err != nil {
				return err
			}
			if !fresh {
				if _, err := a.pipeline.Load(); err != nil {
					return err
				}
			}
			return a.train(cmd, samples, fresh)
		},
	}
	cmd.Flags().StringVarP(&dataPath, "data", "d", "", "path to the labeled samples (JSON)")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "rebuild the vocabulary and start from a new model")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

// readSamples accepts JSON files only, sniffed from their content.
func readSamples(path string) ([]domain.Sample, error) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errDataFile, err)
	}
	if !mtype.Is("application/json") && !mtype.Is("text/plain") {
		return nil, fmt.Errorf("%w: %s is %s, expected JSON", errDataFile, path, mtype.String())
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errDataFile, err)
	}
	var samples []domain.Sample
	if err := json.Unmarshal(raw, &samples); err != nil {
		return nil, fmt.Errorf("%w: %w", errDataFile, err)
	}
	return samples, nil
}

func (a *app) train(cmd *cobra.Command, samples []domain.Sample, fresh bool) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitorCtx, stopMonitor := context.WithCancel(ctx)
	defer stopMonitor()
	go a.monitor.Listen(monitorCtx, a.config.MetricInterval)

	out := cmd.OutOrStdout()
	epochs := a.config.Epochs
	history, err := a.pipeline.Train(ctx, samples, classifier.TrainOptions{
		Fresh: fresh,
		OnEpochEnd: func(r domain.EpochReport) {
			fmt.Fprintf(out, "%s loss=%s val_loss=%s mae=%s acc=%s\n",
				paint(a.colours, color.FgCyan, fmt.Sprintf("epoch %d/%d", r.Epoch+1, epochs)),
				float4(r.Loss), float4(r.ValLoss), float4(r.MAE), float4(r.Accuracy))
		},
	})
	cancelled := errors.Is(err, apperrors.ErrTrainingCancelled)
	if err != nil && !cancelled {
		return err
	}
	if len(history.Epochs) == 0 {
		return err
	}

	table := newTable(out, "Epoch", "Loss", "Val loss", "MAE", "Val MAE", "Accuracy")
	for _, r := range history.Epochs {
		table.Append([]string{
			strconv.Itoa(r.Epoch + 1), float4(r.Loss), float4(r.ValLoss),
			float4(r.MAE), float4(r.ValMAE), float4(r.Accuracy),
		})
	}
	table.Render()

	key, saveErr := a.pipeline.Save()
	if saveErr != nil {
		return saveErr
	}
	stats := a.monitor.Refresh()
	fmt.Fprintf(out, "%s under %q (%d train / %d validation samples, batch %d, %s, rss %s)\n",
		paint(a.colours, color.FgGreen, "model saved"), key,
		history.TrainCount, history.ValCount, history.BatchSize, history.Duration, megabytes(stats.RSSBytes))
	if cancelled {
		fmt.Fprintln(out, paint(a.colours, color.FgYellow, "training was interrupted, weights of the last finished epoch were kept"))
	}
	return err
}
