package cli

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Veraticus/bates-must-flow/internal/model"
)

func TestBatchReporter_Quiet(t *testing.T) {
	var out bytes.Buffer
	r := NewBatchReporter(&out, 2, true)

	r.Record("a.pdf", model.RunRecord{Stage: model.StageFinalized, NewFileName: "000001-000002_Disc01_a.pdf"})
	r.Record("b.pdf", model.RunRecord{Stage: model.StageFailed, ErrorKind: model.KindMissingStamps})

	stats := r.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.Filed)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, 1, stats.ByKind[model.KindMissingStamps])

	text := out.String()
	assert.Contains(t, text, "000001-000002_Disc01_a.pdf")
	assert.Contains(t, text, "b.pdf: "+string(model.KindMissingStamps))

	r.Finish()
	assert.Contains(t, out.String(), "Batch Complete")
}

func TestBatchReporter_ProgressBar(t *testing.T) {
	var out bytes.Buffer
	r := NewBatchReporter(&out, 1, false)
	r.Record("a.pdf", model.RunRecord{Stage: model.StageFinalized})
	assert.Equal(t, 1, r.Stats().Filed)
}

func TestFormatSummary(t *testing.T) {
	s := FormatSummary(BatchStats{
		Total:    3,
		Filed:    1,
		Rejected: 2,
		Duration: 2 * time.Second,
		ByKind: map[model.ErrorKind]int{
			model.KindInconsecutiveStamps: 2,
		},
	})
	assert.Contains(t, s, "Files: 3")
	assert.Contains(t, s, string(model.KindInconsecutiveStamps)+": 2")
	assert.Contains(t, s, "2s")
}

func TestFormatScan(t *testing.T) {
	readings := []model.StampReading{
		model.NewStampReading(0, 10, "000010", "// 000010"),
		model.AbsentStampReading(1, "Page 2"),
	}
	verdict := model.SequenceVerdict{Kind: model.VerdictMissing, MissingPages: []int{1}, ExpectedPages: 2, ReadPages: 2}

	out := FormatScan(readings, verdict)
	assert.Contains(t, out, "000010")
	assert.Contains(t, out, "missing")
	assert.Contains(t, out, "page(s) 2 of 2")
}

func TestFormatRuns(t *testing.T) {
	assert.Contains(t, FormatRuns(nil), "No runs recorded")

	runs := []model.RunRecord{
		{StartedAt: time.Now(), OriginalFileName: "scan.pdf", FolderName: "PD251234_1", Stage: model.StageFinalized, NewFileName: "000001-000003_Disc01_scan.pdf"},
		{StartedAt: time.Now(), OriginalFileName: strings.Repeat("x", 40) + ".pdf", Stage: model.StageFailed, ErrorKind: model.KindFileTooLarge},
	}
	out := FormatRuns(runs)
	assert.Contains(t, out, "PD251234_1")
	assert.Contains(t, out, "000001-000003_Disc01_scan.pdf")
	assert.Contains(t, out, string(model.KindFileTooLarge))
	assert.Contains(t, out, "…")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
