// Package pdftext extracts the text printed in the footer region of PDF pages.
package pdftext

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ledongthuc/pdf"
)

// ErrInvalidRegion is returned for a region outside (0, 1].
var ErrInvalidRegion = errors.New("invalid page region")

// Region selects a full-width band at the bottom of the displayed page.
// Bottom is the band's height as a fraction of the page height.
type Region struct {
	Bottom float64
}

// DefaultRegion covers the bottom 12% of the page.
func DefaultRegion() Region {
	return Region{Bottom: 0.12}
}

// Validate checks the region is a usable fraction.
func (r Region) Validate() error {
	if r.Bottom <= 0 || r.Bottom > 1 {
		return fmt.Errorf("%w: bottom fraction %.3f", ErrInvalidRegion, r.Bottom)
	}
	return nil
}

// Document is an opened PDF.
type Document interface {
	NumPages() int
	// PageText returns the text inside region on the zero-based page, or ""
	// when the page has no extractable text there.
	PageText(index int, region Region) string
}

// Extractor opens PDF bytes for page text extraction.
type Extractor struct {
	logger *slog.Logger
}

// NewExtractor creates an extractor. A nil logger uses slog.Default.
func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Open parses data as a PDF.
func (e *Extractor) Open(data []byte) (doc Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc, err = nil, fmt.Errorf("failed to parse pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pdf: %w", err)
	}
	// The page count resolves the page tree root, so a broken trailer fails
	// here instead of on first use.
	return &pdfDocument{reader: reader, pages: reader.NumPage(), logger: e.logger}, nil
}

type pdfDocument struct {
	reader *pdf.Reader
	logger *slog.Logger
	pages  int
}

func (d *pdfDocument) NumPages() int {
	return d.pages
}

// PageText resolves page objects lazily, and the pdf package panics on
// broken objects. Any such page reads as "".
func (d *pdfDocument) PageText(index int, region Region) (text string) {
	if index < 0 || index >= d.pages {
		return ""
	}
	defer func() {
		if r := recover(); r != nil {
			d.logger.Debug("page unreadable", "page", index, "error", r)
			text = ""
		}
	}()
	page := d.reader.Page(index + 1)
	if page.V.IsNull() {
		return ""
	}

	geom, ok := pageGeometry(page.V)
	if !ok {
		d.logger.Debug("page has no media box", "page", index)
		return ""
	}

	glyphs, err := pageGlyphs(page)
	if err != nil {
		d.logger.Debug("page content unreadable", "page", index, "error", err)
		return ""
	}

	return assemble(clip(glyphs, geom, region))
}

func pageGlyphs(page pdf.Page) (glyphs []glyph, err error) {
	defer func() {
		if r := recover(); r != nil {
			glyphs, err = nil, fmt.Errorf("content stream: %v", r)
		}
	}()

	content := page.Content()
	glyphs = make([]glyph, 0, len(content.Text))
	for _, t := range content.Text {
		glyphs = append(glyphs, glyph{X: t.X, Y: t.Y, W: t.W, Size: t.FontSize, S: t.S})
	}
	inferAdvances(glyphs)
	return glyphs, nil
}

// pageGeometry reads the (possibly inherited) MediaBox and Rotate entries.
func pageGeometry(v pdf.Value) (geometry, bool) {
	var g geometry
	box := inherited(v, "MediaBox")
	if box.Kind() != pdf.Array || box.Len() != 4 {
		return g, false
	}
	x0, y0 := box.Index(0).Float64(), box.Index(1).Float64()
	x1, y1 := box.Index(2).Float64(), box.Index(3).Float64()
	g.X0, g.X1 = min(x0, x1), max(x0, x1)
	g.Y0, g.Y1 = min(y0, y1), max(y0, y1)
	if g.X1 == g.X0 || g.Y1 == g.Y0 {
		return g, false
	}
	g.Rotate = normalizeRotation(int(inherited(v, "Rotate").Int64()))
	return g, true
}

func inherited(v pdf.Value, key string) pdf.Value {
	for depth := 0; !v.IsNull() && depth < 32; depth++ {
		if val := v.Key(key); !val.IsNull() {
			return val
		}
		v = v.Key("Parent")
	}
	return pdf.Value{}
}
