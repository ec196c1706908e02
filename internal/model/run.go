package model

import "time"

// RunRecord summarizes one file's traversal for the audit log.
type RunRecord struct {
	StartedAt        time.Time
	FinishedAt       time.Time
	Verdict          *SequenceVerdict
	ID               string
	FileID           string
	OriginalFileName string
	NewFileName      string
	FolderName       string
	CaseNumber       string
	DiscNumber       string
	TargetFolderID   string
	UserID           string
	Stage            Stage
	ErrorKind        ErrorKind
	ErrorDetail      string
	Trail            []StageEvent
	PageCount        int
	Year             int
}

// NewRunRecord flattens a payload into a record.
func NewRunRecord(id string, p *ProcessingPayload, started, finished time.Time) RunRecord {
	rec := RunRecord{
		ID:               id,
		StartedAt:        started,
		FinishedAt:       finished,
		FileID:           p.Event.FileID,
		OriginalFileName: p.Event.OriginalFileName,
		UserID:           p.Event.UserID,
		FolderName:       p.FolderName,
		NewFileName:      p.NewFileName,
		Stage:            p.Stage,
		PageCount:        p.PageCount,
		Verdict:          p.Verdict,
		Trail:            p.Trail,
	}
	if p.CaseID != nil {
		rec.CaseNumber = p.CaseID.CaseNumber
		rec.DiscNumber = p.CaseID.DiscNumber
		rec.Year = p.CaseID.Year
	}
	if p.TargetFolder != nil {
		rec.TargetFolderID = p.TargetFolder.ID
	}
	if p.Error != nil {
		rec.ErrorKind = p.Error.Kind
		rec.ErrorDetail = p.Error.Detail
	}
	return rec
}

// Succeeded reports whether the run finalized the file.
func (r RunRecord) Succeeded() bool {
	return r.Stage == StageFinalized
}
