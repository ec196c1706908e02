package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/bates-must-flow/internal/engine"
	"github.com/Veraticus/bates-must-flow/internal/model"
	"github.com/Veraticus/bates-must-flow/internal/storage"
	"github.com/Veraticus/bates-must-flow/internal/webhook"
)

type stubProcessor struct{}

func (stubProcessor) Process(_ context.Context, _ model.UploadEvent) engine.Outcome {
	return engine.Outcome{Stage: model.StageFinalized}
}

func TestNewMux(t *testing.T) {
	handler := webhook.NewHandler(nil, stubProcessor{}, 1, nil)
	mux := newMux(handler)

	tests := []struct {
		name   string
		method string
		path   string
		want   int
	}{
		{name: "health check", method: http.MethodGet, path: "/healthz", want: http.StatusOK},
		{name: "webhook rejects get", method: http.MethodGet, path: "/webhook", want: http.StatusMethodNotAllowed},
		{name: "webhook rejects bad payload", method: http.MethodPost, path: "/webhook", want: http.StatusBadRequest},
		{name: "unknown path", method: http.MethodGet, path: "/nope", want: http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, strings.NewReader("{}")))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestServe_StopsOnCancel(t *testing.T) {
	handler := webhook.NewHandler(nil, stubProcessor{}, 1, nil)
	server := &http.Server{Addr: "127.0.0.1:0", Handler: newMux(handler), ReadHeaderTimeout: time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, server, handler, time.Second) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
}

func TestFormatCounts(t *testing.T) {
	assert.Contains(t, formatCounts(nil), "No runs recorded")

	out := formatCounts(map[string]int{"Finalized": 5, "MissingStamps": 2, "FileTooLarge": 2})
	assert.Contains(t, out, "Total: 9")
	assert.Less(t, strings.Index(out, "Finalized"), strings.Index(out, "FileTooLarge"))
	assert.Less(t, strings.Index(out, "FileTooLarge"), strings.Index(out, "MissingStamps"))
}

func TestFormatRun(t *testing.T) {
	at := time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)
	run := model.RunRecord{
		ID:               "run-1",
		FileID:           "f1",
		OriginalFileName: "scan.pdf",
		FolderName:       "PD251234_1",
		CaseNumber:       "1234",
		DiscNumber:       "01",
		Year:             2025,
		Stage:            model.StageFailed,
		ErrorKind:        model.KindInconsecutiveStamps,
		ErrorDetail:      "page 3 expected 12 found 14",
		Trail: []model.StageEvent{
			{Stage: model.StageReceived, At: at},
			{Stage: model.StageFailed, At: at.Add(time.Second), Note: "InconsecutiveStamps"},
		},
	}

	out := formatRun(run)
	assert.Contains(t, out, "scan.pdf (f1)")
	assert.Contains(t, out, "2025 / 1234 disc 01")
	assert.Contains(t, out, "InconsecutiveStamps: page 3 expected 12 found 14")
	assert.Contains(t, out, string(model.StageReceived))
}

func TestProcessCmd_RequiresOneSource(t *testing.T) {
	cmd := processCmd()
	cmd.SetArgs([]string{"Cases"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one of --root or --box")
}

func TestVersionCmd(t *testing.T) {
	var out bytes.Buffer
	cmd := versionCmd()
	cmd.SetOut(&out)
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "bates version dev\n", out.String())
}

func TestJoinKinds(t *testing.T) {
	assert.Equal(t, "MissingStamps, FileTooLarge", joinKinds([]model.ErrorKind{model.KindMissingStamps, model.KindFileTooLarge}))
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"scan"},
		{"process"},
		{"serve"},
		{"history", "show"},
		{"history", "stats"},
		{"history", "export"},
		{"migrate"},
		{"backup", "create"},
		{"backup", "list"},
		{"backup", "restore"},
		{"auth", "google"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestFormatSize(t *testing.T) {
	assert.Equal(t, "512 B", formatSize(512))
	assert.Equal(t, "1.5 KB", formatSize(1536))
	assert.Equal(t, "2.0 MB", formatSize(2<<20))
}

func TestFormatBackups(t *testing.T) {
	assert.Contains(t, formatBackups(nil), "No backups")

	out := formatBackups([]storage.Backup{{ID: "auto-migrate-1", IsAuto: true, Runs: 3, FileSize: 2048, Description: "before migrate"}})
	assert.Contains(t, out, "auto-migrate-1")
	assert.Contains(t, out, "(auto)")
	assert.Contains(t, out, "3 runs")
	assert.Contains(t, out, "before migrate")
}
