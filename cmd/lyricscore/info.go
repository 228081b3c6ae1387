package main

import (
	"fmt"
	"strconv"

	"github.com/gookit/color"
	"github.com/spf13/cobra"
)

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Describe the saved model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.pipeline.Load(); err != nil {
				return err
			}
			info, ok := a.pipeline.Info()
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), paint(a.colours, color.FgYellow, "no model yet"))
				return nil
			}
			table := newTable(cmd.OutOrStdout(), "Property", "Value")
			table.AppendBulk([][]string{
				{"ID", info.ID.String()},
				{"Version", strconv.Itoa(info.Version)},
				{"Architecture", info.Architecture},
				{"Layers", strconv.Itoa(info.Layers)},
				{"Parameters", strconv.Itoa(info.TotalParams)},
				{"Vocabulary", fmt.Sprintf("%d / %d", info.VocabSize, info.VocabCapacity)},
				{"Sequence length", strconv.Itoa(info.MaxSequenceLength)},
				{"Vocabulary hash", info.VocabularyHash[:12]},
				{"Trained", strconv.FormatBool(info.Trained)},
			})
			table.Render()
			return nil
		},
	}
}
