package cli

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/bates-must-flow/internal/model"
)

// BatchStats summarizes a batch of processed files.
type BatchStats struct {
	Duration time.Duration
	Total    int
	Filed    int
	Rejected int
	ByKind   map[model.ErrorKind]int
}

// BatchReporter shows progress while a directory of files is processed and a
// summary once it is done.
type BatchReporter struct {
	writer      io.Writer
	progressBar *progressbar.ProgressBar
	started     time.Time
	stats       BatchStats
	quiet       bool
}

// NewBatchReporter creates a reporter for total files. A quiet reporter
// prints one line per file instead of a progress bar.
func NewBatchReporter(writer io.Writer, total int, quiet bool) *BatchReporter {
	if writer == nil {
		writer = os.Stdout
	}
	r := &BatchReporter{
		writer:  writer,
		started: time.Now(),
		quiet:   quiet,
		stats:   BatchStats{Total: total, ByKind: make(map[model.ErrorKind]int)},
	}
	if !quiet {
		r.progressBar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(writer),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionShowCount(),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetWidth(40),
			progressbar.OptionSetDescription("[cyan][bold]Stamping discovery...[reset]"),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "[green]=[reset]",
				SaucerHead:    "[green]>[reset]",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionOnCompletion(func() {
				if _, err := fmt.Fprintln(writer); err != nil {
					slog.Warn("Failed to write newline after progress bar", "error", err)
				}
			}),
		)
	}
	return r
}

// Record counts one finished file.
func (r *BatchReporter) Record(name string, rec model.RunRecord) {
	if rec.Succeeded() {
		r.stats.Filed++
	} else {
		r.stats.Rejected++
		r.stats.ByKind[rec.ErrorKind]++
	}

	if r.quiet {
		line := FormatSuccess(fmt.Sprintf("%s → %s", name, rec.NewFileName))
		if !rec.Succeeded() {
			line = FormatError(fmt.Sprintf("%s: %s", name, rec.ErrorKind))
		}
		if _, err := fmt.Fprintln(r.writer, line); err != nil {
			slog.Warn("Failed to write file result", "error", err)
		}
		return
	}
	if err := r.progressBar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Stats returns the counts so far.
func (r *BatchReporter) Stats() BatchStats {
	s := r.stats
	s.Duration = time.Since(r.started)
	return s
}

// Finish prints the summary box.
func (r *BatchReporter) Finish() {
	if _, err := fmt.Fprintln(r.writer, FormatSummary(r.Stats())); err != nil {
		slog.Warn("Failed to write batch summary", "error", err)
	}
}

// FormatSummary renders batch statistics in a box.
func FormatSummary(s BatchStats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "  • Files: %d\n", s.Total)
	fmt.Fprintf(&b, "  • Filed: %s\n", SuccessStyle.Render(fmt.Sprint(s.Filed)))
	fmt.Fprintf(&b, "  • Rejected: %s\n", ErrorStyle.Render(fmt.Sprint(s.Rejected)))
	for _, kind := range model.ErrorKinds() {
		if n := s.ByKind[kind]; n > 0 {
			fmt.Fprintf(&b, "      %s: %d\n", kind, n)
		}
	}
	fmt.Fprintf(&b, "  • Time taken: %s", s.Duration.Round(time.Second))
	return RenderBox("Batch Complete", b.String())
}

// FormatScan renders per-page readings followed by the verdict.
func FormatScan(readings []model.StampReading, verdict model.SequenceVerdict) string {
	rows := make([][]string, 0, len(readings))
	for _, r := range readings {
		stamp := ErrorStyle.Render("missing")
		if r.Present() {
			stamp = r.Digits
		}
		rows = append(rows, []string{
			fmt.Sprint(r.PageIndex + 1),
			stamp,
			truncate(strings.ReplaceAll(r.RawText, "\n", " ⏎ "), 48),
		})
	}

	line := FormatSuccess(verdict.Describe())
	if !verdict.Consistent() {
		line = FormatError(verdict.Describe())
	}
	return renderTable([]string{"Page", "Stamp", "Footer text"}, rows) + "\n" + line
}

// FormatRuns renders audit records as a table.
func FormatRuns(runs []model.RunRecord) string {
	if len(runs) == 0 {
		return SubtleStyle.Render("No runs recorded.")
	}
	rows := make([][]string, 0, len(runs))
	for _, r := range runs {
		result := SuccessStyle.Render(SuccessIcon + " " + r.NewFileName)
		if !r.Succeeded() {
			result = ErrorStyle.Render(ErrorIcon + " " + string(r.ErrorKind))
		}
		rows = append(rows, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			truncate(r.OriginalFileName, 32),
			r.FolderName,
			result,
		})
	}
	return renderTable([]string{"Started", "File", "Folder", "Result"}, rows)
}

func renderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	renderRow := func(cells []string, style lipgloss.Style) string {
		out := make([]string, len(cells))
		for i, cell := range cells {
			out[i] = TableCellStyle.Width(widths[i] + 2).Render(style.Render(cell))
		}
		return lipgloss.JoinHorizontal(lipgloss.Top, out...)
	}

	lines := []string{renderRow(headers, TableHeaderStyle)}
	for _, row := range rows {
		lines = append(lines, renderRow(row, lipgloss.NewStyle()))
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
