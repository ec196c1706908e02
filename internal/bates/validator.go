package bates

import "github.com/Veraticus/bates-must-flow/internal/model"

// Validate judges an ordered list of readings against the document's true
// page count. Discovery numbering is strictly sequential with one stamp per
// page, so any deviation is reported rather than corrected.
func Validate(readings []model.StampReading, truePageCount int) model.SequenceVerdict {
	verdict := model.SequenceVerdict{
		ReadPages:     len(readings),
		ExpectedPages: truePageCount,
	}

	var missing []int
	for i, r := range readings {
		if !r.Present() {
			missing = append(missing, i)
		}
	}
	if len(readings) != truePageCount || len(missing) > 0 || len(readings) == 0 {
		verdict.Kind = model.VerdictMissing
		verdict.MissingPages = missing
		return verdict
	}

	var gaps []model.Gap
	for i := 0; i+1 < len(readings); i++ {
		expected := *readings[i].Value + 1
		if found := *readings[i+1].Value; found != expected {
			gaps = append(gaps, model.Gap{Page: i + 1, Expected: expected, Found: found})
		}
	}
	if len(gaps) > 0 {
		verdict.Kind = model.VerdictInconsecutive
		verdict.Gaps = gaps
		return verdict
	}

	verdict.Kind = model.VerdictConsistent
	verdict.Start = *readings[0].Value
	verdict.End = *readings[len(readings)-1].Value
	for _, r := range readings {
		verdict.Width = max(verdict.Width, len(r.Digits))
	}
	return verdict
}
