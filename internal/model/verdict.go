package model

import (
	"fmt"
	"strings"
)

// VerdictKind tags the outcome of sequence validation.
type VerdictKind string

// Verdict kinds.
const (
	VerdictConsistent    VerdictKind = "consistent"
	VerdictMissing       VerdictKind = "missing"
	VerdictInconsecutive VerdictKind = "inconsecutive"
)

// Gap is one page whose stamp does not follow its predecessor.
type Gap struct {
	Page     int `json:"page"`
	Expected int `json:"expected"`
	Found    int `json:"found"`
}

// SequenceVerdict is the single validation outcome for a document.
// Start, End and Width are set for consistent verdicts, MissingPages for
// missing ones and Gaps for inconsecutive ones.
type SequenceVerdict struct {
	Kind          VerdictKind `json:"kind"`
	MissingPages  []int       `json:"missing_pages,omitempty"`
	Gaps          []Gap       `json:"gaps,omitempty"`
	Start         int         `json:"start,omitempty"`
	End           int         `json:"end,omitempty"`
	Width         int         `json:"width,omitempty"`
	ReadPages     int         `json:"read_pages"`
	ExpectedPages int         `json:"expected_pages"`
}

// Consistent reports whether the verdict allows naming the document.
func (v SequenceVerdict) Consistent() bool {
	return v.Kind == VerdictConsistent
}

// Describe renders the verdict for humans reading a notification.
func (v SequenceVerdict) Describe() string {
	switch v.Kind {
	case VerdictConsistent:
		return fmt.Sprintf("Bates stamps %d through %d", v.Start, v.End)
	case VerdictMissing:
		if len(v.MissingPages) == 0 {
			return fmt.Sprintf("found %d stamp readings for %d pages", v.ReadPages, v.ExpectedPages)
		}
		pages := make([]string, len(v.MissingPages))
		for i, p := range v.MissingPages {
			pages[i] = fmt.Sprintf("%d", p+1)
		}
		return fmt.Sprintf("no Bates stamp found on page(s) %s of %d", strings.Join(pages, ", "), v.ExpectedPages)
	case VerdictInconsecutive:
		parts := make([]string, len(v.Gaps))
		for i, g := range v.Gaps {
			parts[i] = fmt.Sprintf("page %d expected %d found %d", g.Page+1, g.Expected, g.Found)
		}
		return "stamps are not consecutive: " + strings.Join(parts, "; ")
	default:
		return "no verdict"
	}
}
