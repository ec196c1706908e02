package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Veraticus/bates-must-flow/internal/cli"
	"github.com/Veraticus/bates-must-flow/internal/engine"
	"github.com/Veraticus/bates-must-flow/internal/localstore"
	"github.com/Veraticus/bates-must-flow/internal/model"
	"github.com/Veraticus/bates-must-flow/internal/notify"
)

type processOptions struct {
	root       string
	asUser     string
	logNotices bool
	noRecord   bool
	quiet      bool
	useBox     bool
}

func processCmd() *cobra.Command {
	var opts processOptions

	cmd := &cobra.Command{
		Use:   "process [FOLDER|FILE.pdf|FILE_ID]...",
		Short: "Run uploads through the pipeline",
		Long: `Process files exactly as an upload event would: read and validate their
Bates stamps, then rename and move each consistent file into its case's
Discovery folder. Failures are reported to the uploader.

With --root the arguments are folders or PDFs inside a local tree laid out like
the Box enterprise (eDefender/PD251234_1/..., eDefender/Cases/...).
With --box the arguments are Box file IDs.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.useBox == (opts.root != "") {
				return fmt.Errorf("exactly one of --root or --box is required")
			}
			if opts.useBox {
				return runProcessBox(cmd, args, opts)
			}
			return runProcessLocal(cmd, args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.root, "root", "", "process files from a local directory tree")
	cmd.Flags().BoolVar(&opts.useBox, "box", false, "process Box file IDs")
	cmd.Flags().StringVar(&opts.asUser, "as-user", os.Getenv("USER"), "user ID the files are processed on behalf of")
	cmd.Flags().BoolVar(&opts.logNotices, "log-notices", false, "log failure notices instead of mailing them")
	cmd.Flags().BoolVar(&opts.noRecord, "no-record", false, "do not write runs to the audit database")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "print one line per file instead of a progress bar")
	return cmd
}

func runProcessLocal(cmd *cobra.Command, args []string, opts processOptions) error {
	ctx := cmd.Context()
	store := localstore.NewOS(opts.root)

	var events []model.UploadEvent
	for _, arg := range args {
		ids := []string{arg}
		if !strings.EqualFold(path.Ext(arg), ".pdf") {
			var err error
			if ids, err = store.PDFs(arg); err != nil {
				return err
			}
		}
		for _, id := range ids {
			event, err := store.Event(id, opts.asUser)
			if err != nil {
				return err
			}
			events = append(events, event)
		}
	}

	notifier, err := newNotifier(ctx, nil, opts.logNotices)
	if err != nil {
		return err
	}
	return processEvents(cmd, store, notifier, events, opts)
}

func runProcessBox(cmd *cobra.Command, args []string, opts processOptions) error {
	ctx := cmd.Context()
	if opts.asUser == "" {
		return fmt.Errorf("--as-user is required with --box")
	}
	client, err := newBoxClient(ctx)
	if err != nil {
		return err
	}

	creds := model.Credentials{UserID: opts.asUser}
	events := make([]model.UploadEvent, 0, len(args))
	for _, id := range args {
		info, err := client.FileInfo(ctx, creds, id)
		if err != nil {
			return err
		}
		events = append(events, model.UploadEvent{
			FileID:           info.ID,
			OriginalFileName: info.Name,
			ParentFolderID:   info.Parent.ID,
			UserID:           opts.asUser,
			Size:             info.Size,
		})
	}

	notifier, err := newNotifier(ctx, client, opts.logNotices)
	if err != nil {
		return err
	}
	return processEvents(cmd, client, notifier, events, opts)
}

func processEvents(cmd *cobra.Command, be backend, notifier *notify.Service, events []model.UploadEvent, opts processOptions) error {
	var recorder engine.RunRecorder
	if !opts.noRecord {
		store, err := openStorage(cmd.Context())
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		recorder = store
	}

	coordinator, err := newCoordinator(be, notifier, recorder)
	if err != nil {
		return err
	}

	interrupts := cli.NewInterruptHandler(cmd.ErrOrStderr())
	ctx := interrupts.HandleInterrupts(cmd.Context(), true)

	reporter := cli.NewBatchReporter(cmd.OutOrStdout(), len(events), opts.quiet)
	for _, event := range events {
		if ctx.Err() != nil {
			break
		}
		outcome := coordinator.Process(ctx, event)
		reporter.Record(event.OriginalFileName, outcomeRecord(outcome))
	}
	reporter.Finish()

	if interrupts.WasInterrupted() {
		return context.Canceled
	}
	if stats := reporter.Stats(); stats.Rejected > 0 {
		slog.Debug("Batch finished with rejections", "rejected", stats.Rejected)
		return fmt.Errorf("%d of %d file(s) were rejected", stats.Rejected, stats.Total)
	}
	return nil
}

func outcomeRecord(o engine.Outcome) model.RunRecord {
	trail := o.Payload.Trail
	return model.NewRunRecord(o.RunID, o.Payload, trail[0].At, trail[len(trail)-1].At)
}
