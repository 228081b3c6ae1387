package main

import (
	"errors"
	"fmt"
	apperrors "lyrics-lab/errors"
	"strings"

	"github.com/spf13/cobra"
)

func newPredictCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "predict [lyrics...]",
		Short: "Score one or more lyrics with the saved model",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			found, err := a.pipeline.Load()
			if err != nil {
				return err
			}
			if !found {
				return fmt.Errorf("%w: train a model first", apperrors.ErrModelNotBuilt)
			}

			table := newTable(cmd.OutOrStdout(), "Lyrics", "Score", "Confidence", "Category", "Flagged")
			for _, text := range args {
				result, err := a.pipeline.Predict(text)
				if err != nil {
					return errors.Join(fmt.Errorf("prediction failed for %q", text), err)
				}
				table.Append([]string{
					excerpt(text, 40),
					float4(result.Score),
					float4(result.Confidence),
					paint(a.colours, categoryColour(result.Category), string(result.Category)),
					strings.Join(result.Flagged, ", "),
				})
			}
			table.Render()
			return nil
		},
	}
}

func excerpt(s string, n int) string {
	r := []rune(strings.Join(strings.Fields(s), " "))
	if len(r) <= n {
		return string(r)
	}
	return string(r[:n-1]) + "…"
}
