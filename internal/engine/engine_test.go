package engine

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/Veraticus/bates-must-flow/internal/bates"
	"github.com/Veraticus/bates-must-flow/internal/model"
	"github.com/Veraticus/bates-must-flow/internal/pdftext"
	"github.com/Veraticus/bates-must-flow/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)

type harness struct {
	store    *MockStore
	lister   *routing.MockLister
	notifier *MockNotifier
	recorder *MockRecorder
	opener   *MockOpener
	cfg      Config
}

func newHarness() *harness {
	store := NewMockStore()
	store.Folders["up1"] = "PD251234_02"
	store.Files["f1"] = []byte("doc")

	return &harness{
		store: store,
		lister: routing.NewMockLister(map[string][]model.Folder{
			"0":   {{ID: "r25", Name: "eDefender"}, {ID: "r24", Name: "eDefender_2024"}},
			"r25": {{ID: "c1", Name: "PD251234 Smith"}, {ID: "c2", Name: "PD255555 Doe"}},
			"c1":  {{ID: "d1", Name: "Discovery"}, {ID: "p1", Name: "Pleadings"}},
		}),
		notifier: &MockNotifier{},
		recorder: &MockRecorder{},
		opener: &MockOpener{Docs: map[string]MockDocument{
			"doc": {Pages: []string{"// 000101", "// 000102", "// 000103"}},
		}},
		cfg: DefaultConfig(),
	}
}

func (h *harness) coordinator(t *testing.T) *Coordinator {
	t.Helper()
	resolver := routing.NewResolver(h.lister, nil).WithClock(func() time.Time { return testNow })
	c, err := NewWithConfig(Collaborators{
		Store:    h.store,
		Resolver: resolver,
		Notifier: h.notifier,
		Recorder: h.recorder,
		Opener:   h.opener,
	}, h.cfg, nil)
	require.NoError(t, err)
	c.WithClock(func() time.Time { return testNow })
	c.newID = func() string { return "run-1" }
	return c
}

func uploadEvent() model.UploadEvent {
	return model.UploadEvent{
		AccessToken:      "tok",
		FileID:           "f1",
		OriginalFileName: "scan.pdf",
		ParentFolderID:   "up1",
		UserID:           "u1",
	}
}

func TestCoordinator_FilesConsistentDocument(t *testing.T) {
	h := newHarness()
	out := h.coordinator(t).Process(context.Background(), uploadEvent())

	require.True(t, out.Succeeded(), "err: %v", out.Err)
	assert.Nil(t, out.Err)
	assert.Equal(t, "run-1", out.RunID)
	require.Len(t, h.store.Moves, 1)
	assert.Equal(t, MockMove{FileID: "f1", NewName: "000101-000103_Disc02_scan.pdf", TargetFolderID: "d1"}, h.store.Moves[0])
	assert.Empty(t, h.notifier.Calls)

	p := out.Payload
	assert.Equal(t, "PD251234_02", p.FolderName)
	assert.Equal(t, 2025, p.CaseID.Year)
	assert.Equal(t, 3, p.PageCount)
	assert.Equal(t, model.VerdictConsistent, p.Verdict.Kind)

	stages := make([]model.Stage, len(p.Trail))
	for i, e := range p.Trail {
		stages[i] = e.Stage
	}
	assert.Equal(t, []model.Stage{
		model.StageReceived,
		model.StageFolderContextResolved,
		model.StageExtractionDone,
		model.StageValidated,
		model.StageRouted,
		model.StageFinalized,
	}, stages)

	require.Len(t, h.recorder.Runs, 1)
	assert.True(t, h.recorder.Runs[0].Succeeded())
	assert.Equal(t, "d1", h.recorder.Runs[0].TargetFolderID)
}

func TestCoordinator_RejectsGap(t *testing.T) {
	h := newHarness()
	h.opener.Docs["doc"] = MockDocument{Pages: []string{"// 000101", "// 000103", "// 000104"}}

	out := h.coordinator(t).Process(context.Background(), uploadEvent())

	require.NotNil(t, out.Err)
	assert.Equal(t, model.StageFailed, out.Stage)
	assert.Equal(t, model.KindInconsecutiveStamps, out.Err.Kind)
	assert.Equal(t, []model.Gap{{Page: 1, Expected: 102, Found: 103}}, out.Payload.Verdict.Gaps)
	assert.Empty(t, h.store.Moves)
	assert.Empty(t, h.lister.Calls)

	require.Len(t, h.notifier.Calls, 1)
	call := h.notifier.Calls[0]
	assert.Equal(t, "scan.pdf", call.OriginalFileName)
	assert.Equal(t, "https://app.box.com/file/f1", call.Link)
	assert.Equal(t, "PD251234_02", call.Error.Context["folder_name"])
	assert.Equal(t, "u1", call.Error.Context["user_id"])
}

func TestCoordinator_RejectsBadFolderName(t *testing.T) {
	h := newHarness()
	h.store.Folders["up1"] = "DiscCase1234"

	out := h.coordinator(t).Process(context.Background(), uploadEvent())

	require.NotNil(t, out.Err)
	assert.Equal(t, model.KindInvalidFolderName, out.Err.Kind)
	assert.Zero(t, h.store.DownloadCalls)
	assert.Zero(t, h.opener.OpenCalls)
	assert.Nil(t, out.Payload.Readings)
	assert.Nil(t, out.Payload.CaseID)
	assert.Equal(t, "DiscCase1234", out.Payload.FolderName)
	assert.Len(t, h.notifier.Calls, 1)
}

func TestCoordinator_RejectsDuplicateCaseFolder(t *testing.T) {
	h := newHarness()
	h.lister.Tree["r25"] = append(h.lister.Tree["r25"], model.Folder{ID: "c9", Name: "PD251234_Smith (copy)"})

	out := h.coordinator(t).Process(context.Background(), uploadEvent())

	require.NotNil(t, out.Err)
	assert.Equal(t, model.KindDuplicateCaseFolder, out.Err.Kind)
	assert.Equal(t, "case folder", out.Err.Context["scope"])
	assert.Empty(t, h.store.Moves)
	assert.Len(t, h.notifier.Calls, 1)
	assert.Empty(t, out.Payload.NewFileName)
	assert.Nil(t, out.Payload.TargetFolder)
}

func TestCoordinator_Failures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name       string
		setup      func(*harness)
		event      func(model.UploadEvent) model.UploadEvent
		wantKind   model.ErrorKind
		wantStage  model.Stage
		downloaded bool
	}{
		{
			name:      "missing event fields",
			event:     func(e model.UploadEvent) model.UploadEvent { e.UserID = ""; return e },
			wantKind:  model.KindInvocationError,
			wantStage: model.StageReceived,
		},
		{
			name: "folder lookup fails",
			setup: func(h *harness) {
				h.store.GetFolderNameFn = func(context.Context, model.Credentials, string) (string, error) {
					return "", boom
				}
			},
			wantKind:  model.KindLookupError,
			wantStage: model.StageReceived,
		},
		{
			name:      "declared size over limit",
			event:     func(e model.UploadEvent) model.UploadEvent { e.Size = DefaultMaxFileSize + 1; return e },
			wantKind:  model.KindFileTooLarge,
			wantStage: model.StageFolderContextResolved,
		},
		{
			name:       "content over limit",
			setup:      func(h *harness) { h.cfg.MaxFileSize = 2 },
			wantKind:   model.KindFileTooLarge,
			wantStage:  model.StageFolderContextResolved,
			downloaded: true,
		},
		{
			name: "download fails",
			setup: func(h *harness) {
				h.store.DownloadFn = func(context.Context, model.Credentials, string) (io.ReadCloser, error) {
					return nil, boom
				}
			},
			wantKind:   model.KindInvocationError,
			wantStage:  model.StageFolderContextResolved,
			downloaded: true,
		},
		{
			name:       "content is not a PDF",
			setup:      func(h *harness) { h.store.Files["f1"] = []byte("garbage") },
			wantKind:   model.KindInvocationError,
			wantStage:  model.StageFolderContextResolved,
			downloaded: true,
		},
		{
			name: "document breaks while pages are read",
			setup: func(h *harness) {
				h.opener.Docs["doc"] = MockDocument{Broken: "malformed xref", Pages: []string{"// 000101"}}
			},
			wantKind:   model.KindInvocationError,
			wantStage:  model.StageFolderContextResolved,
			downloaded: true,
		},
		{
			name: "page without stamp",
			setup: func(h *harness) {
				h.opener.Docs["doc"] = MockDocument{Pages: []string{"// 000101", "", "// 000103"}}
			},
			wantKind:   model.KindMissingStamps,
			wantStage:  model.StageExtractionDone,
			downloaded: true,
		},
		{
			name:       "discovery folder missing",
			setup:      func(h *harness) { h.lister.Tree["c1"] = h.lister.Tree["c1"][1:] },
			wantKind:   model.KindDiscoveryFolderNotFound,
			wantStage:  model.StageValidated,
			downloaded: true,
		},
		{
			name:       "case folder missing",
			setup:      func(h *harness) { h.lister.Tree["r25"] = h.lister.Tree["r25"][1:] },
			wantKind:   model.KindCaseFolderNotFound,
			wantStage:  model.StageValidated,
			downloaded: true,
		},
		{
			name: "folder listing fails",
			setup: func(h *harness) {
				h.lister.ListFoldersFn = func(context.Context, model.Credentials, string) ([]model.Folder, error) {
					return nil, boom
				}
			},
			wantKind:   model.KindInvocationError,
			wantStage:  model.StageValidated,
			downloaded: true,
		},
		{
			name: "rename and move fails",
			setup: func(h *harness) {
				h.store.RenameAndMoveFn = func(context.Context, model.Credentials, string, string, string) error {
					return boom
				}
			},
			wantKind:   model.KindInvocationError,
			wantStage:  model.StageRouted,
			downloaded: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness()
			if tt.setup != nil {
				tt.setup(h)
			}
			event := uploadEvent()
			if tt.event != nil {
				event = tt.event(event)
			}

			out := h.coordinator(t).Process(context.Background(), event)

			require.NotNil(t, out.Err)
			assert.Equal(t, tt.wantKind, out.Err.Kind)
			assert.Equal(t, model.StageFailed, out.Stage)
			assert.Empty(t, h.store.Moves)
			assert.Equal(t, tt.downloaded, h.store.DownloadCalls > 0)

			trail := out.Payload.Trail
			require.GreaterOrEqual(t, len(trail), 2)
			assert.Equal(t, tt.wantStage, trail[len(trail)-2].Stage)
			assert.Equal(t, model.StageFailed, trail[len(trail)-1].Stage)
			assert.Equal(t, string(tt.wantKind), trail[len(trail)-1].Note)

			require.Len(t, h.notifier.Calls, 1)
			assert.Same(t, out.Err, h.notifier.Calls[0].Error)
			require.Len(t, h.recorder.Runs, 1)
			assert.Equal(t, tt.wantKind, h.recorder.Runs[0].ErrorKind)
		})
	}
}

func TestCoordinator_NotifierAndRecorderErrorsDoNotChangeOutcome(t *testing.T) {
	h := newHarness()
	h.store.Folders["up1"] = "bad name"
	h.notifier.NotifyFn = func(context.Context, *model.ProcessingError, string, string) error {
		return errors.New("smtp down")
	}
	h.recorder.Err = errors.New("disk full")

	out := h.coordinator(t).Process(context.Background(), uploadEvent())

	assert.Equal(t, model.KindInvalidFolderName, out.Err.Kind)
	assert.Len(t, h.notifier.Calls, 1)
}

func TestCoordinator_PreservesStampWidth(t *testing.T) {
	h := newHarness()
	h.opener.Docs["doc"] = MockDocument{Pages: []string{"Smith // 00099", "Smith // 00100"}}

	out := h.coordinator(t).Process(context.Background(), uploadEvent())

	require.True(t, out.Succeeded(), "err: %v", out.Err)
	assert.Equal(t, "00099-00100_Disc02_scan.pdf", h.store.Moves[0].NewName)
}

func TestNewWithConfig_Validation(t *testing.T) {
	h := newHarness()
	collab := Collaborators{Store: h.store, Resolver: routing.NewResolver(h.lister, nil), Notifier: h.notifier}

	_, err := New(Collaborators{Store: h.store}, nil)
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.MaxFileSize = 0
	_, err = NewWithConfig(collab, cfg, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.FileLinkFormat = "https://example.com/file"
	_, err = NewWithConfig(collab, cfg, nil)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.BatesPattern = `//\s*\d+`
	_, err = NewWithConfig(collab, cfg, nil)
	assert.Error(t, err)

	_, err = New(collab, nil)
	assert.NoError(t, err)
}

func TestReadStamps_RecoversFromBrokenDocument(t *testing.T) {
	_, err := ReadStamps(MockDocument{Broken: "bad object"}, bates.MustNewScanner(""), pdftext.DefaultRegion())
	require.ErrorIs(t, err, ErrUnreadableDocument)
	assert.Contains(t, err.Error(), "bad object")

	readings, err := ReadStamps(MockDocument{Pages: []string{"// 000001", ""}}, bates.MustNewScanner(""), pdftext.DefaultRegion())
	require.NoError(t, err)
	require.Len(t, readings, 2)
	assert.True(t, readings[0].Present())
	assert.False(t, readings[1].Present())
}
