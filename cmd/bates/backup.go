package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/bates-must-flow/internal/cli"
	"github.com/Veraticus/bates-must-flow/internal/storage"
)

func backupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Manage audit database backups",
	}
	cmd.AddCommand(backupCreateCmd())
	cmd.AddCommand(backupListCmd())
	cmd.AddCommand(backupRestoreCmd())
	return cmd
}

func backupCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create [NAME]",
		Short: "Save a copy of the audit database",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			description, _ := cmd.Flags().GetString("description")
			var tag string
			if len(args) == 1 {
				tag = args[0]
			}

			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			mgr, err := store.Backups()
			if err != nil {
				return err
			}
			b, err := mgr.Create(cmd.Context(), tag, description)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(
				fmt.Sprintf("Created backup %s (%d runs, %s)", b.ID, b.Runs, formatSize(b.FileSize))))
			return nil
		},
	}
	cmd.Flags().StringP("description", "d", "", "note stored with the backup")
	return cmd
}

func backupListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List audit database backups",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			mgr, err := store.Backups()
			if err != nil {
				return err
			}
			backups, err := mgr.List()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatBackups(backups))
			return nil
		},
	}
}

func backupRestoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore NAME",
		Short: "Replace the audit database with a backup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			mgr, err := store.Backups()
			if err != nil {
				_ = store.Close()
				return err
			}
			if err := store.Close(); err != nil {
				return fmt.Errorf("failed to close database: %w", err)
			}
			if err := mgr.Restore(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess("Restored backup "+args[0]))
			return nil
		},
	}
}

func formatBackups(backups []storage.Backup) string {
	if len(backups) == 0 {
		return cli.SubtleStyle.Render("No backups.")
	}
	var b strings.Builder
	for _, bk := range backups {
		kind := ""
		if bk.IsAuto {
			kind = " " + cli.SubtleStyle.Render("(auto)")
		}
		fmt.Fprintf(&b, "  • %s%s  %s  %d runs  %s\n", bk.ID, kind,
			bk.CreatedAt.Local().Format("2006-01-02 15:04"), bk.Runs, formatSize(bk.FileSize))
		if bk.Description != "" {
			fmt.Fprintf(&b, "    %s\n", bk.Description)
		}
	}
	return cli.RenderBox("Backups", strings.TrimRight(b.String(), "\n"))
}

func formatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
