package model

import (
	"errors"
	"fmt"
	"time"
)

// Payload errors. Both indicate a coordinator bug, not a document defect.
var (
	ErrPayloadFieldSet = errors.New("payload field already set")
	ErrStageOrder      = errors.New("payload stage out of order")
)

// StageEvent is one entry of the payload's audit trail.
type StageEvent struct {
	At    time.Time `json:"at"`
	Stage Stage     `json:"stage"`
	Note  string    `json:"note,omitempty"`
}

// ProcessingPayload carries one file through the pipeline. Fields are only
// ever added: each setter refuses to overwrite a populated field and only
// runs in the stage that populates it.
type ProcessingPayload struct {
	CaseID       *CaseIdentifier
	Verdict      *SequenceVerdict
	TargetFolder *Folder
	Error        *ProcessingError
	Event        UploadEvent
	Stage        Stage
	FolderName   string
	NewFileName  string
	Readings     []StampReading
	Trail        []StageEvent
	PageCount    int
}

// NewPayload starts a payload in the Received stage.
func NewPayload(event UploadEvent, at time.Time) *ProcessingPayload {
	return &ProcessingPayload{
		Event: event,
		Stage: StageReceived,
		Trail: []StageEvent{{Stage: StageReceived, At: at}},
	}
}

func (p *ProcessingPayload) require(stage Stage, field string, empty bool) error {
	if p.Stage != stage {
		return fmt.Errorf("%w: %s set in %s, want %s", ErrStageOrder, field, p.Stage, stage)
	}
	if !empty {
		return fmt.Errorf("%w: %s", ErrPayloadFieldSet, field)
	}
	return nil
}

// AttachFolderName records the upload folder's name.
func (p *ProcessingPayload) AttachFolderName(name string) error {
	if err := p.require(StageReceived, "folder_name", p.FolderName == ""); err != nil {
		return err
	}
	p.FolderName = name
	return nil
}

// AttachCaseID records the case identifier parsed from the folder name.
func (p *ProcessingPayload) AttachCaseID(id CaseIdentifier) error {
	if err := p.require(StageReceived, "case_id", p.CaseID == nil); err != nil {
		return err
	}
	p.CaseID = &id
	return nil
}

// AttachReadings records the per-page stamp readings and the true page count.
func (p *ProcessingPayload) AttachReadings(pageCount int, readings []StampReading) error {
	if err := p.require(StageFolderContextResolved, "readings", p.Readings == nil); err != nil {
		return err
	}
	p.PageCount = pageCount
	p.Readings = append(make([]StampReading, 0, len(readings)), readings...)
	return nil
}

// AttachVerdict records the sequence verdict.
func (p *ProcessingPayload) AttachVerdict(v SequenceVerdict) error {
	if err := p.require(StageExtractionDone, "verdict", p.Verdict == nil); err != nil {
		return err
	}
	p.Verdict = &v
	return nil
}

// AttachRoute records the composed filename and the resolved target folder.
func (p *ProcessingPayload) AttachRoute(newName string, target Folder) error {
	if err := p.require(StageValidated, "route", p.NewFileName == "" && p.TargetFolder == nil); err != nil {
		return err
	}
	p.NewFileName = newName
	p.TargetFolder = &target
	return nil
}

// Advance moves the payload to the next stage.
func (p *ProcessingPayload) Advance(to Stage, at time.Time) error {
	if p.Stage.Next() != to {
		return fmt.Errorf("%w: %s -> %s", ErrStageOrder, p.Stage, to)
	}
	p.Stage = to
	p.Trail = append(p.Trail, StageEvent{Stage: to, At: at})
	return nil
}

// Fail moves the payload to the Failed terminal from any non-terminal stage.
func (p *ProcessingPayload) Fail(perr *ProcessingError, at time.Time) error {
	if p.Stage.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrStageOrder, p.Stage)
	}
	p.Error = perr
	p.Trail = append(p.Trail, StageEvent{Stage: StageFailed, At: at, Note: string(perr.Kind)})
	p.Stage = StageFailed
	return nil
}
