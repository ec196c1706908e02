// Package engine runs uploaded files through stamp extraction, validation,
// routing and finalization.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/Veraticus/bates-must-flow/internal/bates"
	"github.com/Veraticus/bates-must-flow/internal/caseid"
	"github.com/Veraticus/bates-must-flow/internal/common"
	"github.com/Veraticus/bates-must-flow/internal/model"
	"github.com/Veraticus/bates-must-flow/internal/pdftext"
	"github.com/Veraticus/bates-must-flow/internal/routing"
)

// ErrUnreadableDocument is returned by ReadStamps when a document fails
// while its pages are read.
var ErrUnreadableDocument = errors.New("document unreadable")

// Collaborators are the external services the coordinator drives.
// Recorder and Opener are optional.
type Collaborators struct {
	Store    DocumentStore
	Resolver FolderResolver
	Notifier Notifier
	Recorder RunRecorder
	Opener   DocumentOpener
}

// Outcome is the result of one traversal.
type Outcome struct {
	Payload *model.ProcessingPayload
	Err     *model.ProcessingError
	RunID   string
	Stage   model.Stage
}

// Succeeded reports whether the file was finalized.
func (o Outcome) Succeeded() bool {
	return o.Stage == model.StageFinalized
}

// Coordinator sequences the pipeline for one file at a time. It holds no
// per-file state, so Process may be called concurrently.
type Coordinator struct {
	store    DocumentStore
	resolver FolderResolver
	notifier Notifier
	recorder RunRecorder
	opener   DocumentOpener
	scanner  *bates.Scanner
	logger   *slog.Logger
	now      func() time.Time
	newID    func() string
	composer bates.Composer
	cfg      Config
}

// New creates a coordinator with the default configuration.
func New(c Collaborators, logger *slog.Logger) (*Coordinator, error) {
	return NewWithConfig(c, DefaultConfig(), logger)
}

// NewWithConfig creates a coordinator with custom configuration.
func NewWithConfig(c Collaborators, cfg Config, logger *slog.Logger) (*Coordinator, error) {
	if c.Store == nil || c.Resolver == nil || c.Notifier == nil {
		return nil, fmt.Errorf("%w: coordinator needs a document store, resolver and notifier", common.ErrMissingConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scanner, err := bates.NewScanner(cfg.BatesPattern)
	if err != nil {
		return nil, err
	}

	logger = common.OrDefault(logger)
	opener := c.Opener
	if opener == nil {
		opener = pdftext.NewExtractor(logger)
	}

	return &Coordinator{
		store:    c.Store,
		resolver: c.Resolver,
		notifier: c.Notifier,
		recorder: c.Recorder,
		opener:   opener,
		scanner:  scanner,
		composer: bates.NewComposer(cfg.Width),
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
		cfg:      cfg,
	}, nil
}

// WithClock sets the clock used for stage timestamps.
func (c *Coordinator) WithClock(now func() time.Time) *Coordinator {
	c.now = now
	return c
}

// Process runs one uploaded file to Finalized or Failed. A failure is
// notified exactly once and never retried.
func (c *Coordinator) Process(ctx context.Context, event model.UploadEvent) Outcome {
	started := c.now()
	runID := c.newID()
	logger := c.logger.With("run_id", runID, "file_id", event.FileID)
	logger.Info("Processing upload", "file", event.OriginalFileName, "folder_id", event.ParentFolderID)

	p := model.NewPayload(event, started)
	if perr := c.run(ctx, p, logger); perr != nil {
		perr.With("file_name", event.OriginalFileName).
			With("folder_id", event.ParentFolderID).
			With("folder_name", p.FolderName).
			With("user_id", event.UserID)
		if err := p.Fail(perr, c.now()); err != nil {
			logger.Error("Failed to mark payload failed", "error", err)
		}
		logger.Warn("File failed", "kind", perr.Kind, "detail", perr.Detail)
		c.notify(ctx, p, logger)
	} else {
		logger.Info("File finalized", "new_name", p.NewFileName, "target_folder", p.TargetFolder.ID)
	}

	c.record(ctx, runID, p, started, logger)
	return Outcome{
		RunID:   runID,
		Stage:   p.Stage,
		Payload: p,
		Err:     p.Error,
	}
}

func (c *Coordinator) run(ctx context.Context, p *model.ProcessingPayload, logger *slog.Logger) *model.ProcessingError {
	event := p.Event
	creds := event.Credentials()

	if missing := event.MissingFields(); len(missing) > 0 {
		return model.NewProcessingError(model.KindInvocationError, event.FileID,
			"upload event is missing required fields").With("missing", strings.Join(missing, ", "))
	}

	// Received -> FolderContextResolved
	folderName, err := c.store.GetFolderName(ctx, creds, event.ParentFolderID)
	if err != nil {
		return model.NewProcessingError(model.KindLookupError, event.FileID,
			fmt.Sprintf("could not look up upload folder: %v", err))
	}
	if err := p.AttachFolderName(folderName); err != nil {
		return c.internal(event, err)
	}
	id, err := caseid.Parse(folderName)
	if err != nil {
		return model.NewProcessingError(model.KindInvalidFolderName, event.FileID,
			fmt.Sprintf("folder %q is not named PD<YY><case>_<disc>", folderName))
	}
	if err := p.AttachCaseID(id); err != nil {
		return c.internal(event, err)
	}
	if err := p.Advance(model.StageFolderContextResolved, c.now()); err != nil {
		return c.internal(event, err)
	}
	logger.Debug("Folder context resolved", "folder", folderName, "case", id.PDNumber(), "disc", id.DiscNumber)

	// FolderContextResolved -> ExtractionDone
	if event.Size > c.cfg.MaxFileSize {
		return c.tooLarge(event, event.Size)
	}
	data, perr := c.download(ctx, event)
	if perr != nil {
		return perr
	}
	doc, err := c.opener.Open(data)
	if err != nil {
		return model.NewProcessingError(model.KindInvocationError, event.FileID,
			fmt.Sprintf("could not read file as PDF: %v", err))
	}
	readings, err := ReadStamps(doc, c.scanner, c.cfg.Region)
	if err != nil {
		return model.NewProcessingError(model.KindInvocationError, event.FileID,
			fmt.Sprintf("could not read file as PDF: %v", err))
	}
	if err := p.AttachReadings(doc.NumPages(), readings); err != nil {
		return c.internal(event, err)
	}
	if err := p.Advance(model.StageExtractionDone, c.now()); err != nil {
		return c.internal(event, err)
	}

	// ExtractionDone -> Validated
	verdict := bates.Validate(readings, doc.NumPages())
	if err := p.AttachVerdict(verdict); err != nil {
		return c.internal(event, err)
	}
	switch verdict.Kind {
	case model.VerdictMissing:
		return model.NewProcessingError(model.KindMissingStamps, event.FileID, verdict.Describe()).
			With("missing_pages", pageList(verdict.MissingPages))
	case model.VerdictInconsecutive:
		return model.NewProcessingError(model.KindInconsecutiveStamps, event.FileID, verdict.Describe())
	}
	if err := p.Advance(model.StageValidated, c.now()); err != nil {
		return c.internal(event, err)
	}

	// Validated -> Routed
	newName := c.composer.Compose(verdict, id.DiscNumber, event.OriginalFileName)
	target, err := c.resolver.Resolve(ctx, creds, id)
	if err != nil {
		var rerr *routing.Error
		if errors.As(err, &rerr) {
			return model.NewProcessingError(rerr.Kind, event.FileID, rerr.Error()).
				With("scope", string(rerr.Scope)).
				With("case", id.PDNumber())
		}
		return model.NewProcessingError(model.KindInvocationError, event.FileID,
			fmt.Sprintf("could not list folders: %v", err))
	}
	if err := p.AttachRoute(newName, target); err != nil {
		return c.internal(event, err)
	}
	if err := p.Advance(model.StageRouted, c.now()); err != nil {
		return c.internal(event, err)
	}

	// Routed -> Finalized
	if err := c.store.RenameAndMove(ctx, creds, event.FileID, newName, target.ID); err != nil {
		return model.NewProcessingError(model.KindInvocationError, event.FileID,
			fmt.Sprintf("could not rename and move file: %v", err)).
			With("new_name", newName).
			With("target_folder_id", target.ID)
	}
	if err := p.Advance(model.StageFinalized, c.now()); err != nil {
		return c.internal(event, err)
	}
	return nil
}

// download reads at most one byte past the limit so oversized content is
// rejected even when the event did not declare a size.
func (c *Coordinator) download(ctx context.Context, event model.UploadEvent) ([]byte, *model.ProcessingError) {
	rc, err := c.store.Download(ctx, event.Credentials(), event.FileID)
	if err != nil {
		return nil, model.NewProcessingError(model.KindInvocationError, event.FileID,
			fmt.Sprintf("could not download file: %v", err))
	}
	defer func() {
		if cerr := rc.Close(); cerr != nil {
			c.logger.Debug("Failed to close download", "file_id", event.FileID, "error", cerr)
		}
	}()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(rc, c.cfg.MaxFileSize+1))
	if err != nil {
		return nil, model.NewProcessingError(model.KindInvocationError, event.FileID,
			fmt.Sprintf("could not download file: %v", err))
	}
	if n > c.cfg.MaxFileSize {
		return nil, c.tooLarge(event, n)
	}
	return buf.Bytes(), nil
}

func (c *Coordinator) tooLarge(event model.UploadEvent, size int64) *model.ProcessingError {
	return model.NewProcessingError(model.KindFileTooLarge, event.FileID,
		fmt.Sprintf("file exceeds the %d MB limit", c.cfg.MaxFileSize>>20)).
		With("size", strconv.FormatInt(size, 10)).
		With("limit", strconv.FormatInt(c.cfg.MaxFileSize, 10))
}

// internal classifies a payload ordering error. These only occur on a
// coordinator bug but must still reach the uploader classified.
func (c *Coordinator) internal(event model.UploadEvent, err error) *model.ProcessingError {
	c.logger.Error("Payload invariant violated", "file_id", event.FileID, "error", err)
	return model.NewProcessingError(model.KindInvocationError, event.FileID, err.Error())
}

func (c *Coordinator) notify(ctx context.Context, p *model.ProcessingPayload, logger *slog.Logger) {
	link := fmt.Sprintf(c.cfg.FileLinkFormat, p.Event.FileID)
	if err := c.notifier.Notify(ctx, p.Error, p.Event.OriginalFileName, link); err != nil {
		logger.Error("Failed to dispatch failure notification", "kind", p.Error.Kind, "error", err)
	}
}

func (c *Coordinator) record(ctx context.Context, runID string, p *model.ProcessingPayload, started time.Time, logger *slog.Logger) {
	if c.recorder == nil {
		return
	}
	if err := c.recorder.RecordRun(ctx, model.NewRunRecord(runID, p, started, c.now())); err != nil {
		logger.Error("Failed to record run", "error", err)
	}
}

// ReadStamps scans every page of doc and returns one reading per page. A
// document that panics while being read is reported as an error.
func ReadStamps(doc pdftext.Document, scanner *bates.Scanner, region pdftext.Region) (readings []model.StampReading, err error) {
	defer func() {
		if r := recover(); r != nil {
			readings, err = nil, fmt.Errorf("%w: %v", ErrUnreadableDocument, r)
		}
	}()

	n := doc.NumPages()
	readings = make([]model.StampReading, 0, n)
	for i := 0; i < n; i++ {
		readings = append(readings, scanner.Read(i, doc.PageText(i, region)))
	}
	return readings, nil
}

// pageList renders zero-based page indices as 1-based page numbers.
func pageList(pages []int) string {
	parts := make([]string, len(pages))
	for i, p := range pages {
		parts[i] = strconv.Itoa(p + 1)
	}
	return strings.Join(parts, ", ")
}
