package testutil

import (
	"fmt"
	"time"

	"github.com/Veraticus/bates-must-flow/internal/model"
)

// BaseTime is the start time of runs built without At.
var BaseTime = time.Date(2025, time.April, 2, 10, 0, 0, 0, time.UTC)

// RunBuilder builds run records with a fluent API. A new builder describes
// a run that has only been received.
type RunBuilder struct {
	rec model.RunRecord
}

// NewRun starts a run with the given ID for file "f-<id>" uploaded into
// PD251234_02.
func NewRun(id string) *RunBuilder {
	return &RunBuilder{rec: model.RunRecord{
		ID:               id,
		FileID:           "f-" + id,
		OriginalFileName: "scan.pdf",
		FolderName:       "PD251234_02",
		UserID:           "u1",
		Stage:            model.StageReceived,
		StartedAt:        BaseTime,
		FinishedAt:       BaseTime,
	}}
}

// At sets when the run started. It finishes a second later.
func (b *RunBuilder) At(t time.Time) *RunBuilder {
	b.rec.StartedAt = t
	b.rec.FinishedAt = t.Add(time.Second)
	return b
}

// File sets the uploaded file's name.
func (b *RunBuilder) File(name string) *RunBuilder {
	b.rec.OriginalFileName = name
	return b
}

// Folder sets the upload folder's name.
func (b *RunBuilder) Folder(name string) *RunBuilder {
	b.rec.FolderName = name
	return b
}

// Finalized marks the run filed as a consistent range start..end on disc 02
// of case 2025/1234.
func (b *RunBuilder) Finalized(start, end int) *RunBuilder {
	pages := end - start + 1
	b.rec.Stage = model.StageFinalized
	b.rec.CaseNumber = "1234"
	b.rec.DiscNumber = "02"
	b.rec.Year = 2025
	b.rec.PageCount = pages
	b.rec.TargetFolderID = "d1"
	b.rec.NewFileName = fmt.Sprintf("%06d-%06d_Disc02_%s", start, end, b.rec.OriginalFileName)
	b.rec.Verdict = &model.SequenceVerdict{
		Kind:          model.VerdictConsistent,
		Start:         start,
		End:           end,
		Width:         6,
		ReadPages:     pages,
		ExpectedPages: pages,
	}
	b.rec.Trail = []model.StageEvent{
		{Stage: model.StageReceived, At: b.rec.StartedAt},
		{Stage: model.StageFinalized, At: b.rec.FinishedAt},
	}
	return b
}

// Failed marks the run rejected with kind.
func (b *RunBuilder) Failed(kind model.ErrorKind) *RunBuilder {
	b.rec.Stage = model.StageFailed
	b.rec.ErrorKind = kind
	b.rec.ErrorDetail = "rejected: " + string(kind)
	b.rec.Trail = []model.StageEvent{
		{Stage: model.StageReceived, At: b.rec.StartedAt},
		{Stage: model.StageFailed, At: b.rec.FinishedAt, Note: string(kind)},
	}
	return b
}

// Build returns the record.
func (b *RunBuilder) Build() model.RunRecord {
	return b.rec
}
