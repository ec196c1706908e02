package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/spf13/afero"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/bates-must-flow/internal/common"
	"github.com/Veraticus/bates-must-flow/internal/googleauth"
	"github.com/Veraticus/bates-must-flow/internal/model"
)

// detailHeader is the header row of the per-run table.
var detailHeader = []any{"Started", "File", "Folder", "Case", "Disc", "Outcome", "New Name", "Pages", "Detail", "Run ID"}

// Writer exports run records to a spreadsheet.
type Writer struct {
	service  *sheets.Service
	logger   *slog.Logger
	location *time.Location
	config   Config
}

// NewWriter creates a writer authenticated from config.
func NewWriter(ctx context.Context, config Config, logger *slog.Logger) (*Writer, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	httpClient, err := googleauth.HTTPClient(ctx, afero.NewOsFs(), config.Credentials(), sheets.SpreadsheetsScope)
	if err != nil {
		return nil, err
	}
	srv, err := sheets.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("unable to create sheets service: %w", err)
	}
	return NewWriterWithService(srv, config, logger), nil
}

// NewWriterWithService creates a writer over an existing service.
func NewWriterWithService(srv *sheets.Service, config Config, logger *slog.Logger) *Writer {
	loc, err := time.LoadLocation(config.TimeZone)
	if err != nil || config.TimeZone == "" {
		loc = time.UTC
	}
	return &Writer{
		service:  srv,
		config:   config,
		location: loc,
		logger:   common.OrDefault(logger),
	}
}

// Write replaces the contents of the run sheet with runs and returns the
// spreadsheet ID.
func (w *Writer) Write(ctx context.Context, runs []model.RunRecord) (string, error) {
	w.logger.Info("Starting run log export", "runs", len(runs))

	spreadsheetID, sheetID, err := w.getOrCreateSheet(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get spreadsheet: %w", err)
	}

	retryOpts := common.RetryOptions{
		MaxAttempts:  w.config.RetryAttempts,
		InitialDelay: w.config.RetryDelay,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}

	if err := common.WithRetry(ctx, func() error {
		return classify(w.clearSheet(ctx, spreadsheetID))
	}, retryOpts); err != nil {
		return "", fmt.Errorf("failed to clear sheet: %w", err)
	}

	values := w.prepareRows(runs)
	if err := common.WithRetry(ctx, func() error {
		return classify(w.writeData(ctx, spreadsheetID, values))
	}, retryOpts); err != nil {
		return "", fmt.Errorf("failed to write data: %w", err)
	}

	if w.config.EnableFormatting {
		headerRow := len(values) - len(runs) - 1
		err := common.WithRetry(ctx, func() error {
			return classify(w.applyFormatting(ctx, spreadsheetID, sheetID, headerRow))
		}, retryOpts)
		if err != nil {
			w.logger.Warn("Failed to apply formatting", "error", err)
		}
	}

	w.logger.Info("Run log export completed", "spreadsheet_id", spreadsheetID, "rows_written", len(values))
	return spreadsheetID, nil
}

// getOrCreateSheet returns the spreadsheet and the ID of the run sheet in
// it, creating either when missing.
func (w *Writer) getOrCreateSheet(ctx context.Context) (string, int64, error) {
	if w.config.SpreadsheetID == "" {
		created, err := w.service.Spreadsheets.Create(&sheets.Spreadsheet{
			Properties: &sheets.SpreadsheetProperties{
				Title:    w.config.SpreadsheetName,
				TimeZone: w.config.TimeZone,
			},
			Sheets: []*sheets.Sheet{{Properties: &sheets.SheetProperties{Title: w.config.SheetTitle}}},
		}).Context(ctx).Do()
		if err != nil {
			return "", 0, fmt.Errorf("unable to create spreadsheet: %w", err)
		}
		w.logger.Info("Created new spreadsheet", "id", created.SpreadsheetId, "url", created.SpreadsheetUrl)

		var sheetID int64
		if len(created.Sheets) > 0 && created.Sheets[0].Properties != nil {
			sheetID = created.Sheets[0].Properties.SheetId
		}
		return created.SpreadsheetId, sheetID, nil
	}

	existing, err := w.service.Spreadsheets.Get(w.config.SpreadsheetID).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("unable to access spreadsheet %s: %w", w.config.SpreadsheetID, err)
	}
	for _, sh := range existing.Sheets {
		if sh.Properties != nil && sh.Properties.Title == w.config.SheetTitle {
			return existing.SpreadsheetId, sh.Properties.SheetId, nil
		}
	}

	resp, err := w.service.Spreadsheets.BatchUpdate(w.config.SpreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: []*sheets.Request{{
			AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: w.config.SheetTitle}},
		}},
	}).Context(ctx).Do()
	if err != nil {
		return "", 0, fmt.Errorf("unable to add sheet %q: %w", w.config.SheetTitle, err)
	}
	if len(resp.Replies) == 0 || resp.Replies[0].AddSheet == nil {
		return "", 0, fmt.Errorf("add sheet %q returned no sheet", w.config.SheetTitle)
	}
	return w.config.SpreadsheetID, resp.Replies[0].AddSheet.Properties.SheetId, nil
}

func (w *Writer) clearSheet(ctx context.Context, spreadsheetID string) error {
	_, err := w.service.Spreadsheets.Values.Clear(spreadsheetID, w.cellRange("A:Z"), &sheets.ClearValuesRequest{}).Context(ctx).Do()
	return err
}

// prepareRows lays out a summary block followed by one row per run, newest
// first.
func (w *Writer) prepareRows(runs []model.RunRecord) [][]any {
	sorted := make([]model.RunRecord, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartedAt.After(sorted[j].StartedAt)
	})

	filed := 0
	byKind := make(map[model.ErrorKind]int)
	for _, r := range sorted {
		if r.Succeeded() {
			filed++
		} else {
			byKind[r.ErrorKind]++
		}
	}

	values := make([][]any, 0, 12+len(byKind)+len(sorted))
	values = append(values,
		[]any{w.config.SpreadsheetName, "Exported " + time.Now().In(w.location).Format("Jan 2, 2006 15:04")},
		[]any{},
		[]any{"Summary"},
		[]any{"Total Runs", len(sorted)},
		[]any{"Filed", filed},
		[]any{"Rejected", len(sorted) - filed},
	)
	for _, kind := range model.ErrorKinds() {
		if n := byKind[kind]; n > 0 {
			values = append(values, []any{string(kind), n})
		}
	}
	values = append(values,
		[]any{},
		[]any{"Run Details"},
		detailHeader,
	)

	for _, r := range sorted {
		outcome := string(r.Stage)
		detail := ""
		if !r.Succeeded() {
			outcome = string(r.ErrorKind)
			detail = r.ErrorDetail
		}
		caseNumber := ""
		if r.CaseNumber != "" {
			caseNumber = fmt.Sprintf("%d-%s", r.Year, r.CaseNumber)
		}
		values = append(values, []any{
			r.StartedAt.In(w.location).Format("2006-01-02 15:04:05"),
			r.OriginalFileName,
			r.FolderName,
			caseNumber,
			r.DiscNumber,
			outcome,
			r.NewFileName,
			r.PageCount,
			detail,
			r.ID,
		})
	}
	return values
}

// writeData writes values in batches to stay under request size limits.
func (w *Writer) writeData(ctx context.Context, spreadsheetID string, values [][]any) error {
	for i := 0; i < len(values); i += w.config.BatchSize {
		end := min(i+w.config.BatchSize, len(values))
		batch := values[i:end]

		_, err := w.service.Spreadsheets.Values.Update(spreadsheetID, w.cellRange(fmt.Sprintf("A%d", i+1)), &sheets.ValueRange{
			Values: batch,
		}).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to write batch starting at row %d: %w", i+1, err)
		}

		w.logger.Debug("Wrote batch", "start_row", i+1, "rows", len(batch))
	}
	return nil
}

// applyFormatting bolds the title and the summary labels down to the detail
// header row.
func (w *Writer) applyFormatting(ctx context.Context, spreadsheetID string, sheetID int64, headerRow int) error {
	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{SheetId: sheetID, StartRowIndex: 0, EndRowIndex: 1, StartColumnIndex: 0, EndColumnIndex: 2},
				Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
					TextFormat: &sheets.TextFormat{Bold: true, FontSize: 16},
				}},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{SheetId: sheetID, StartRowIndex: 2, EndRowIndex: int64(headerRow + 1), StartColumnIndex: 0, EndColumnIndex: 1},
				Cell: &sheets.CellData{UserEnteredFormat: &sheets.CellFormat{
					TextFormat: &sheets.TextFormat{Bold: true},
				}},
				Fields: "userEnteredFormat.textFormat",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   int64(len(detailHeader)),
				},
			},
		},
	}

	_, err := w.service.Spreadsheets.BatchUpdate(spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
		Requests: requests,
	}).Context(ctx).Do()
	return err
}

func (w *Writer) cellRange(cells string) string {
	return fmt.Sprintf("'%s'!%s", w.config.SheetTitle, cells)
}

// classify lets WithRetry retry only throttling and server errors.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
		}
		if apiErr.Code >= 500 {
			return err
		}
	}
	return common.Permanent(err)
}
