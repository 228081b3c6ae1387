package main

import (
	"fmt"
	"io"
	"lyrics-lab/domain"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"
)

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")
	return table
}

func paint(enabled bool, c color.Color, s string) string {
	if !enabled {
		return s
	}
	return c.Render(s)
}

func categoryColour(c domain.Category) color.Color {
	switch c {
	case domain.CategoryHigh:
		return color.FgRed
	case domain.CategoryMedium:
		return color.FgYellow
	default:
		return color.FgGreen
	}
}

func float4(v float64) string {
	return fmt.Sprintf("%.4f", v)
}

func megabytes(n uint64) string {
	return fmt.Sprintf("%.1f MB", float64(n)/1024/1024)
}
