package bates

import (
	"fmt"

	"github.com/Veraticus/bates-must-flow/internal/model"
)

// DefaultWidth is the zero padding used when the printed width is unknown.
const DefaultWidth = 6

// Composer builds canonical filenames from consistent verdicts.
type Composer struct {
	Width int
}

// NewComposer returns a composer with the given fallback width.
func NewComposer(width int) Composer {
	if width <= 0 {
		width = DefaultWidth
	}
	return Composer{Width: width}
}

// Compose returns "{start}-{end}_Disc{disc}_{original}", padding the stamps
// to the width they were printed with. Composing a verdict that is not
// consistent is a caller bug and panics.
func (c Composer) Compose(v model.SequenceVerdict, disc, original string) string {
	if !v.Consistent() {
		panic(fmt.Sprintf("bates: compose called with %s verdict", v.Kind))
	}
	width := v.Width
	if width <= 0 {
		width = c.Width
	}
	if width <= 0 {
		width = DefaultWidth
	}
	return fmt.Sprintf("%0*d-%0*d_Disc%s_%s", width, v.Start, width, v.End, disc, original)
}
