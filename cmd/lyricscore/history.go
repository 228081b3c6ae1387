package main

import (
	"strconv"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List recorded training runs, most recent first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			runs, err := a.runs.ListRuns()
			if err != nil {
				return err
			}
			table := newTable(cmd.OutOrStdout(), "At", "Architecture", "Version", "Samples", "Epochs", "Loss", "Val loss", "Accuracy", "Duration", "Status")
			for _, run := range runs {
				status := paint(a.colours, color.FgGreen, "done")
				if run.Cancelled {
					status = paint(a.colours, color.FgYellow, "cancelled")
				}
				table.Append([]string{
					run.At.Local().Format("2006-01-02 15:04:05"),
					run.Architecture,
					strconv.Itoa(run.Version),
					strconv.Itoa(run.Samples),
					strconv.Itoa(run.Epochs),
					float4(run.Loss),
					float4(run.ValLoss),
					float4(run.Accuracy),
					run.Duration.Round(time.Millisecond).String(),
					status,
				})
			}
			table.Render()
			return nil
		},
	}
}
