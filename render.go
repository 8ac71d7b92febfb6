package organizer

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
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
	for i := 0; i < columns; i++ {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := 0; i < columns; i++ {
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

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// newProgress returns a ProgressFunc drawing a bar on w, plus a finish func.
// Nothing is drawn unless w is a terminal and enabled is true.
func newProgress(w io.Writer, description string, enabled bool) (ProgressFunc, func()) {
	if !enabled || !isTerminal(w) {
		return nil, func() {}
	}

	bar := progressbar.NewOptions64(-1,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	progress := func(done, total int) {
		if total >= 0 && bar.GetMax64() != int64(total) {
			bar.ChangeMax64(int64(total))
		}
		_ = bar.Set64(int64(done))
	}
	return progress, func() { _ = bar.Finish() }
}

// relTo shortens path for display when it sits under root.
func relTo(root, path string) string {
	if root == "" {
		return path
	}
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}

func renderScan(w io.Writer, result *ScanResult, verbose bool) {
	if verbose {
		rows := make([][]string, 0, len(result.Files))
		for _, f := range result.Files {
			rows = append(rows, []string{relTo(result.Root, f.Path), humanize.Bytes(uint64(f.Size))})
		}
		_, _ = fmt.Fprintln(w, renderTable([]string{"File", "Size"}, rows, []columnAlignment{alignLeft, alignRight}))
	}
	for _, warning := range result.Warnings {
		_, _ = fmt.Fprintf(w, "warning: %s\n", warning)
	}
	_, _ = fmt.Fprintf(w, "%d files (%s) found under %s\n", len(result.Files), humanize.Bytes(uint64(result.TotalSize())), result.Root)
}

func renderPlan(w io.Writer, plan *Plan) {
	if len(plan.Operations) == 0 {
		_, _ = fmt.Fprintln(w, "Nothing to organize.")
	} else {
		rows := make([][]string, 0, len(plan.Operations))
		for _, op := range plan.Operations {
			rows = append(rows, []string{
				relTo(plan.Root, op.Source),
				op.Category,
				relTo(plan.DestinationRoot, op.Destination),
			})
		}
		_, _ = fmt.Fprintln(w, renderTable([]string{"Source", "Category", "Destination"}, rows, nil))
	}
	if len(plan.InPlace) > 0 {
		_, _ = fmt.Fprintf(w, "%d files already organized\n", len(plan.InPlace))
	}
	_, _ = fmt.Fprintf(w, "%d files planned\n", len(plan.Operations))
}

func renderExecution(w io.Writer, result *ExecutionResult, verbose bool) {
	rows := [][]string{}
	for _, res := range result.Results {
		if res.Status == StatusMoved && !verbose {
			continue
		}
		detail := res.FinalDestination
		if res.Status == StatusFailed {
			detail = res.Reason
		}
		rows = append(rows, []string{string(res.Status), res.Source, detail})
	}
	if len(rows) > 0 {
		_, _ = fmt.Fprintln(w, renderTable([]string{"Status", "Source", "Destination / Reason"}, rows, nil))
	}
	_, _ = fmt.Fprintln(w, result.Summary())
}

func renderPrune(w io.Writer, result *PruneResult, verbose bool) {
	if verbose {
		for _, dir := range result.Removed {
			_, _ = fmt.Fprintf(w, "removed %s\n", dir)
		}
	}
	for _, failure := range result.Failures {
		_, _ = fmt.Fprintf(w, "failed %s: %s\n", failure.Path, failure.Reason)
	}
	_, _ = fmt.Fprintf(w, "%d empty directories removed\n", result.Count())
}

func renderCategories(w io.Writer, categories []Category) {
	rows := make([][]string, 0, len(categories))
	for _, c := range categories {
		exts := strings.Join(c.Extensions, " ")
		if exts == "" {
			exts = "(fallback)"
		}
		rows = append(rows, []string{c.Name, exts})
	}
	_, _ = fmt.Fprintln(w, renderTable([]string{"Category", "Extensions"}, rows, nil))
}

func renderDuplicates(w io.Writer, root string, groups []DuplicateGroup) {
	if len(groups) == 0 {
		_, _ = fmt.Fprintln(w, "No duplicate files found.")
		return
	}
	rows := [][]string{}
	var wasted uint64
	for i, g := range groups {
		for _, p := range g.Paths {
			rows = append(rows, []string{strconv.Itoa(i + 1), humanize.Bytes(uint64(g.Size)), g.Hash[:12], relTo(root, p)})
		}
		wasted += uint64(g.Size) * uint64(len(g.Paths)-1)
	}
	_, _ = fmt.Fprintln(w, renderTable([]string{"Group", "Size", "Hash", "File"}, rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft}))
	_, _ = fmt.Fprintf(w, "%d duplicate groups, %s reclaimable\n", len(groups), humanize.Bytes(wasted))
}

func renderHistory(w io.Writer, entries []JournalEntry) {
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(w, "Journal is empty.")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		detail := e.Path
		switch {
		case e.Src != "":
			detail = e.Src + " -> " + e.Dest
		case e.Event == EventScanCompleted:
			detail = fmt.Sprintf("%s (%d files)", e.Path, e.Count)
		}
		if e.Reason != "" {
			detail += " (" + e.Reason + ")"
		}
		rows = append(rows, []string{humanize.Time(e.Time), e.RunID, e.Event, detail})
	}
	_, _ = fmt.Fprintln(w, renderTable([]string{"When", "Run", "Event", "Detail"}, rows, nil))
}
