package main

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Veraticus/bates-must-flow/internal/cli"
	"github.com/Veraticus/bates-must-flow/internal/common"
	"github.com/Veraticus/bates-must-flow/internal/config"
	"github.com/Veraticus/bates-must-flow/internal/model"
	"github.com/Veraticus/bates-must-flow/internal/service"
	"github.com/Veraticus/bates-must-flow/internal/sheets"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded pipeline runs",
		Long: `List runs from the audit database, newest first.

Examples:
  bates history --since 24h --failed
  bates history --kind MissingStamps
  bates history show 5f0c...`,
		RunE: runHistory,
	}

	cmd.Flags().Duration("since", 7*24*time.Hour, "only show runs started within this window (0 for all)")
	cmd.Flags().Bool("failed", false, "only show failed runs")
	cmd.Flags().String("kind", "", "only show failures of this kind")
	cmd.Flags().String("file", "", "only show runs for this file ID")
	cmd.Flags().Int("limit", 50, "maximum number of runs to show")

	cmd.AddCommand(historyShowCmd())
	cmd.AddCommand(historyStatsCmd())
	cmd.AddCommand(historyExportCmd())
	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	since, _ := cmd.Flags().GetDuration("since")
	failed, _ := cmd.Flags().GetBool("failed")
	kind, _ := cmd.Flags().GetString("kind")
	fileID, _ := cmd.Flags().GetString("file")
	limit, _ := cmd.Flags().GetInt("limit")

	filter := service.RunFilter{
		Kind:       model.ErrorKind(kind),
		FileID:     fileID,
		Limit:      limit,
		FailedOnly: failed,
	}
	if kind != "" && !filter.Kind.IsValid() {
		return common.NewUserError(fmt.Sprintf("unknown error kind %q", kind),
			fmt.Errorf("valid kinds are %s", joinKinds(model.ErrorKinds())))
	}
	if since > 0 {
		from := time.Now().Add(-since)
		filter.Since = &from
	}

	store, err := openStorage(cmd.Context())
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	runs, err := store.ListRuns(cmd.Context(), filter)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), cli.FormatRuns(runs))
	return nil
}

func historyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show RUN_ID",
		Short: "Show one run with its stage trail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			run, err := store.GetRun(cmd.Context(), args[0])
			if errors.Is(err, common.ErrNotFound) {
				return fmt.Errorf("no run with ID %s", args[0])
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatRun(*run))
			return nil
		},
	}
}

func historyStatsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Count run outcomes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			since, _ := cmd.Flags().GetDuration("since")

			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			var from time.Time
			if since > 0 {
				from = time.Now().Add(-since)
			}
			counts, err := store.CountByOutcome(cmd.Context(), from)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatCounts(counts))
			return nil
		},
	}
	cmd.Flags().Duration("since", 30*24*time.Hour, "window to count (0 for all)")
	return cmd
}

func historyExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export runs to a Google spreadsheet",
		Long: `Replace the run sheet of the configured spreadsheet with the runs in the
window. A new spreadsheet is created when sheets.spreadsheet_id is unset.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			since, _ := cmd.Flags().GetDuration("since")
			spreadsheetID, _ := cmd.Flags().GetString("spreadsheet")

			cfg, err := config.LoadSheetsConfig(viper.GetViper())
			if err != nil {
				return err
			}
			if spreadsheetID != "" {
				cfg.SpreadsheetID = spreadsheetID
			}

			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			filter := service.RunFilter{}
			if since > 0 {
				from := time.Now().Add(-since)
				filter.Since = &from
			}
			runs, err := store.ListRuns(cmd.Context(), filter)
			if err != nil {
				return err
			}

			writer, err := sheets.NewWriter(cmd.Context(), cfg, slog.Default())
			if err != nil {
				return err
			}
			id, err := writer.Write(cmd.Context(), runs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
				fmt.Sprintf("Exported %d run(s) to https://docs.google.com/spreadsheets/d/%s", len(runs), id)))
			return nil
		},
	}
	cmd.Flags().Duration("since", 90*24*time.Hour, "window to export (0 for all)")
	cmd.Flags().String("spreadsheet", "", "spreadsheet ID (overrides sheets.spreadsheet_id)")
	return cmd
}

func formatRun(r model.RunRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "File:     %s (%s)\n", r.OriginalFileName, r.FileID)
	fmt.Fprintf(&b, "Folder:   %s\n", r.FolderName)
	if r.CaseNumber != "" {
		fmt.Fprintf(&b, "Case:     %d / %s disc %s\n", r.Year, r.CaseNumber, r.DiscNumber)
	}
	if r.Verdict != nil {
		fmt.Fprintf(&b, "Verdict:  %s\n", r.Verdict.Describe())
	}
	if r.Succeeded() {
		b.WriteString(cli.FormatSuccess(fmt.Sprintf("Filed as %s in folder %s", r.NewFileName, r.TargetFolderID)) + "\n")
	} else {
		b.WriteString(cli.FormatError(fmt.Sprintf("%s: %s", r.ErrorKind, r.ErrorDetail)) + "\n")
	}
	b.WriteString("\nTrail:\n")
	for _, ev := range r.Trail {
		line := fmt.Sprintf("  %s  %s", ev.At.Local().Format("15:04:05.000"), ev.Stage)
		if ev.Note != "" {
			line += "  " + cli.SubtleStyle.Render(ev.Note)
		}
		b.WriteString(line + "\n")
	}
	return cli.RenderBox("Run "+r.ID, strings.TrimRight(b.String(), "\n"))
}

func formatCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return cli.SubtleStyle.Render("No runs recorded.")
	}
	outcomes := make([]string, 0, len(counts))
	total := 0
	for k, n := range counts {
		outcomes = append(outcomes, k)
		total += n
	}
	sort.Slice(outcomes, func(i, j int) bool {
		if counts[outcomes[i]] != counts[outcomes[j]] {
			return counts[outcomes[i]] > counts[outcomes[j]]
		}
		return outcomes[i] < outcomes[j]
	})

	var b strings.Builder
	for _, o := range outcomes {
		fmt.Fprintf(&b, "  • %s: %d\n", o, counts[o])
	}
	fmt.Fprintf(&b, "  • Total: %d", total)
	return cli.RenderBox("Outcomes", b.String())
}

func joinKinds(kinds []model.ErrorKind) string {
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
