package main

import (
	"fmt"
	"lyrics-lab/classifier"
	"strconv"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "List every model blob in the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			stored, err := a.store.List()
			if err != nil {
				return err
			}
			if len(stored) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), paint(a.colours, color.FgYellow, "store is empty"))
				return nil
			}

			table := newTable(cmd.OutOrStdout(), "Key", "Size", "Architecture", "Version", "Vocabulary", "Params", "Saved", "Trained")
			for _, s := range stored {
				size := fmt.Sprintf("%.1f KB", float64(s.Bytes)/1024)
				blob, err := a.store.Load(s.Key)
				if err != nil {
					table.Append([]string{s.Key, size, paint(a.colours, color.FgRed, err.Error()), "", "", "", "", ""})
					continue
				}
				// A damaged blob is listed, not fatal
				summary, err := classifier.Describe(blob)
				if err != nil {
					table.Append([]string{s.Key, size, paint(a.colours, color.FgRed, "corrupt"), "", "", "", "", ""})
					continue
				}
				table.Append([]string{
					s.Key,
					size,
					summary.Architecture,
					strconv.Itoa(summary.Version),
					strconv.Itoa(summary.VocabSize),
					strconv.Itoa(summary.Params),
					summary.SavedAt.Local().Format("2006-01-02 15:04:05"),
					strconv.FormatBool(summary.Trained),
				})
			}
			table.Render()
			return nil
		},
	}
}
