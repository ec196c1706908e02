package model

// Stage is a state of a file's pipeline traversal.
type Stage string

// Pipeline stages in traversal order, plus the Failed terminal.
const (
	StageReceived              Stage = "Received"
	StageFolderContextResolved Stage = "FolderContextResolved"
	StageExtractionDone        Stage = "ExtractionDone"
	StageValidated             Stage = "Validated"
	StageRouted                Stage = "Routed"
	StageFinalized             Stage = "Finalized"
	StageFailed                Stage = "Failed"
)

var stageOrder = []Stage{
	StageReceived,
	StageFolderContextResolved,
	StageExtractionDone,
	StageValidated,
	StageRouted,
	StageFinalized,
}

// Next returns the stage that follows s, or "" for terminal stages.
func (s Stage) Next() Stage {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1]
		}
	}
	return ""
}

// Terminal reports whether no transition leaves s.
func (s Stage) Terminal() bool {
	return s == StageFinalized || s == StageFailed
}
