package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"glimpse/internal/scheduler"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range r {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := 0; i < columns; i++ {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

func printTable(cmd *cobra.Command, headers []string, rows [][]string, aligns []columnAlignment) {
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, aligns))
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// terminalWidth returns the width of w when it is a terminal.
func terminalWidth(w io.Writer) (int, bool) {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return 0, false
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80, true
	}
	return width, true
}

// isInteractive reports whether r is a terminal a user can answer on.
func isInteractive(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// progressBar renders "[=====     ]  12/40" to fit width columns.
func progressBar(p scheduler.Progress, width int) string {
	counter := fmt.Sprintf(" %*d/%d", len(fmt.Sprint(p.Total)), p.Completed, p.Total)
	barWidth := width - len(counter) - 2
	if barWidth < 10 {
		return strings.TrimSpace(counter)
	}
	if barWidth > 60 {
		barWidth = 60
	}

	filled := 0
	if p.Total > 0 {
		filled = p.Completed * barWidth / p.Total
	}
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", barWidth-filled) + "]" + counter
}

// progressPrinter draws a live bar on terminals and a line every tenth of
// the batch elsewhere.
type progressPrinter struct {
	w        io.Writer
	width    int
	live     bool
	lastTier int
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	width, live := terminalWidth(w)
	return &progressPrinter{w: w, width: width, live: live, lastTier: -1}
}

func (p *progressPrinter) update(pr scheduler.Progress) {
	if p.live {
		fmt.Fprintf(p.w, "\r%s", progressBar(pr, p.width))
		if pr.Completed == pr.Total {
			fmt.Fprintln(p.w)
		}
		return
	}

	tier := 10
	if pr.Total > 0 {
		tier = pr.Completed * 10 / pr.Total
	}
	if tier != p.lastTier {
		p.lastTier = tier
		fmt.Fprintf(p.w, "%d/%d thumbnails\n", pr.Completed, pr.Total)
	}
}
