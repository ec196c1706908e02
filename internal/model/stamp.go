// Package model defines the core domain models used throughout the application.
package model

// StampReading is the Bates stamp found (or not) on a single page.
type StampReading struct {
	Value     *int   // nil when no stamp was recognized on the page
	Digits    string // printed digit run, zero padding included
	RawText   string // region text the reading was taken from
	PageIndex int
}

// Present reports whether the page carried a parseable stamp.
func (r StampReading) Present() bool {
	return r.Value != nil
}

// NewStampReading builds a reading for a recognized stamp.
func NewStampReading(page, value int, digits, raw string) StampReading {
	v := value
	return StampReading{
		PageIndex: page,
		Value:     &v,
		Digits:    digits,
		RawText:   raw,
	}
}

// AbsentStampReading builds a reading for a page without a stamp.
func AbsentStampReading(page int, raw string) StampReading {
	return StampReading{
		PageIndex: page,
		RawText:   raw,
	}
}
