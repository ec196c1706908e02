package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/Veraticus/bates-must-flow/internal/model"
	"github.com/Veraticus/bates-must-flow/internal/testutil"
)

// fakeSheets records the calls the writer makes against the Sheets API.
type fakeSheets struct {
	mu           sync.Mutex
	existing     []string
	written      [][]any
	calls        []string
	batchUpdates int
	failWrites   int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := r.URL.Path
	f.calls = append(f.calls, r.Method+" "+path)
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && path == "/v4/spreadsheets":
		var req sheets.Spreadsheet
		_ = json.NewDecoder(r.Body).Decode(&req)
		_ = json.NewEncoder(w).Encode(sheets.Spreadsheet{
			SpreadsheetId:  "new-sheet",
			SpreadsheetUrl: "https://docs.example.com/new-sheet",
			Sheets:         []*sheets.Sheet{{Properties: &sheets.SheetProperties{SheetId: 7, Title: req.Sheets[0].Properties.Title}}},
		})
	case r.Method == http.MethodGet && strings.HasPrefix(path, "/v4/spreadsheets/"):
		resp := sheets.Spreadsheet{SpreadsheetId: strings.TrimPrefix(path, "/v4/spreadsheets/")}
		for i, title := range f.existing {
			resp.Sheets = append(resp.Sheets, &sheets.Sheet{Properties: &sheets.SheetProperties{SheetId: int64(i), Title: title}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	case strings.HasSuffix(path, ":batchUpdate"):
		f.batchUpdates++
		var req sheets.BatchUpdateSpreadsheetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		resp := sheets.BatchUpdateSpreadsheetResponse{}
		if len(req.Requests) > 0 && req.Requests[0].AddSheet != nil {
			resp.Replies = []*sheets.Response{{AddSheet: &sheets.AddSheetResponse{
				Properties: &sheets.SheetProperties{SheetId: 42, Title: req.Requests[0].AddSheet.Properties.Title},
			}}}
		}
		_ = json.NewEncoder(w).Encode(resp)
	case strings.HasSuffix(path, ":clear"):
		_, _ = w.Write([]byte(`{}`))
	case r.Method == http.MethodPut && strings.Contains(path, "/values/"):
		if f.failWrites > 0 {
			f.failWrites--
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"code":503,"message":"unavailable"}}`))
			return
		}
		var vr sheets.ValueRange
		_ = json.NewDecoder(r.Body).Decode(&vr)
		for _, row := range vr.Values {
			f.written = append(f.written, row)
		}
		_, _ = w.Write([]byte(`{}`))
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"not found"}}`))
	}
}

func newTestWriter(t *testing.T, fake *fakeSheets, mutate func(*Config)) *Writer {
	t.Helper()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	service, err := sheets.NewService(context.Background(),
		option.WithHTTPClient(srv.Client()),
		option.WithEndpoint(srv.URL+"/"))
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.RefreshToken = "unused"
	cfg.RetryDelay = time.Millisecond
	cfg.TimeZone = "UTC"
	if mutate != nil {
		mutate(&cfg)
	}
	return NewWriterWithService(service, cfg, nil)
}

func sampleRuns() []model.RunRecord {
	return []model.RunRecord{
		testutil.NewRun("r1").File("a.pdf").Finalized(1, 10).Build(),
		testutil.NewRun("r2").At(testutil.BaseTime.Add(time.Hour)).File("b.pdf").Failed(model.KindMissingStamps).Build(),
	}
}

func TestWriter_CreatesSpreadsheet(t *testing.T) {
	fake := &fakeSheets{}
	w := newTestWriter(t, fake, nil)

	id, err := w.Write(context.Background(), sampleRuns())
	require.NoError(t, err)
	assert.Equal(t, "new-sheet", id)

	// Newest run first, after the summary block.
	require.Greater(t, len(fake.written), 3)
	last := fake.written[len(fake.written)-1]
	prev := fake.written[len(fake.written)-2]
	assert.Equal(t, "a.pdf", last[1])
	assert.Equal(t, "b.pdf", prev[1])
	assert.Equal(t, "MissingStamps", prev[5])
	assert.Equal(t, "2025-1234", last[3])
	assert.Equal(t, 1, fake.batchUpdates, "formatting applied once")
}

func TestWriter_AddsSheetToExistingSpreadsheet(t *testing.T) {
	fake := &fakeSheets{existing: []string{"Sheet1"}}
	w := newTestWriter(t, fake, func(c *Config) {
		c.SpreadsheetID = "abc"
		c.EnableFormatting = false
	})

	id, err := w.Write(context.Background(), sampleRuns())
	require.NoError(t, err)
	assert.Equal(t, "abc", id)
	assert.Equal(t, 1, fake.batchUpdates, "only the add sheet request")
}

func TestWriter_RetriesTransientWriteFailure(t *testing.T) {
	fake := &fakeSheets{existing: []string{"Runs"}, failWrites: 1}
	w := newTestWriter(t, fake, func(c *Config) { c.SpreadsheetID = "abc" })

	_, err := w.Write(context.Background(), sampleRuns())
	require.NoError(t, err)
	assert.NotEmpty(t, fake.written)
}

func TestWriter_Batches(t *testing.T) {
	fake := &fakeSheets{existing: []string{"Runs"}}
	w := newTestWriter(t, fake, func(c *Config) {
		c.SpreadsheetID = "abc"
		c.BatchSize = 3
		c.EnableFormatting = false
	})

	_, err := w.Write(context.Background(), sampleRuns())
	require.NoError(t, err)

	puts := 0
	for _, c := range fake.calls {
		if strings.HasPrefix(c, http.MethodPut) {
			puts++
		}
	}
	rows := len(w.prepareRows(sampleRuns()))
	assert.Equal(t, (rows+2)/3, puts)
}

func TestPrepareRows_Summary(t *testing.T) {
	w := NewWriterWithService(nil, DefaultConfig(), nil)
	rows := w.prepareRows(sampleRuns())

	find := func(label string) []any {
		for _, r := range rows {
			if len(r) > 0 && r[0] == label {
				return r
			}
		}
		return nil
	}
	assert.Equal(t, []any{"Total Runs", 2}, find("Total Runs"))
	assert.Equal(t, []any{"Filed", 1}, find("Filed"))
	assert.Equal(t, []any{"Rejected", 1}, find("Rejected"))
	assert.Equal(t, []any{"MissingStamps", 1}, find("MissingStamps"))
	assert.Equal(t, detailHeader, find("Started"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "refresh token", mutate: func(c *Config) { c.ClientID, c.ClientSecret, c.RefreshToken = "id", "s", "r" }},
		{name: "service account", mutate: func(c *Config) { c.ServiceAccountPath = "/k.json" }},
		{name: "no auth", mutate: func(*Config) {}, wantErr: true},
		{name: "both auth methods", mutate: func(c *Config) {
			c.ClientID, c.ClientSecret, c.RefreshToken, c.ServiceAccountPath = "id", "s", "r", "/k.json"
		}, wantErr: true},
		{name: "bad batch size", mutate: func(c *Config) { c.ServiceAccountPath = "/k.json"; c.BatchSize = 0 }, wantErr: true},
		{name: "bad time zone", mutate: func(c *Config) { c.ServiceAccountPath = "/k.json"; c.TimeZone = "Mars/Olympus" }, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			if tt.wantErr {
				assert.Error(t, cfg.Validate())
			} else {
				assert.NoError(t, cfg.Validate())
			}
		})
	}
}

func TestConfig_LoadFromEnv(t *testing.T) {
	t.Setenv("GOOGLE_SHEETS_SPREADSHEET_ID", "env-id")
	t.Setenv("GOOGLE_SHEETS_REFRESH_TOKEN", "env-token")

	cfg := DefaultConfig()
	cfg.RefreshToken = "file-token"
	cfg.LoadFromEnv()
	assert.Equal(t, "env-id", cfg.SpreadsheetID)
	assert.Equal(t, "file-token", cfg.RefreshToken)
}
