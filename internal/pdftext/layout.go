package pdftext

import (
	"math"
	"sort"
	"strings"
)

const defaultFontSize = 10.0

// glyph is one positioned run of text in content-space coordinates.
type glyph struct {
	S    string
	X    float64
	Y    float64
	W    float64
	Size float64
}

// geometry is a page's media box and display rotation (0, 90, 180, 270).
type geometry struct {
	X0, Y0, X1, Y1 float64
	Rotate         int
}

func normalizeRotation(deg int) int {
	deg %= 360
	if deg < 0 {
		deg += 360
	}
	// Only quarter turns are legal; anything else is treated as upright.
	if deg%90 != 0 {
		return 0
	}
	return deg
}

// displayed maps a content-space point to upright display coordinates with
// the origin at the bottom-left of the displayed page.
func (g geometry) displayed(x, y float64) (float64, float64) {
	switch g.Rotate {
	case 90:
		return y - g.Y0, g.X1 - x
	case 180:
		return g.X1 - x, g.Y1 - y
	case 270:
		return g.Y1 - y, x - g.X0
	default:
		return x - g.X0, y - g.Y0
	}
}

// height is the displayed page height.
func (g geometry) height() float64 {
	if g.Rotate == 90 || g.Rotate == 270 {
		return g.X1 - g.X0
	}
	return g.Y1 - g.Y0
}

// inferAdvances fills in missing widths from the distance to the following
// glyph. Text drawn with a rotated text matrix comes back from the pdf
// package with zero size and width.
func inferAdvances(glyphs []glyph) {
	for i := 0; i+1 < len(glyphs); i++ {
		if glyphs[i].W != 0 {
			continue
		}
		d := math.Hypot(glyphs[i+1].X-glyphs[i].X, glyphs[i+1].Y-glyphs[i].Y)
		if d > 0 && d <= fontSize(glyphs[i]) {
			glyphs[i].W = d
		}
	}
}

// clip keeps glyphs inside the region and returns them in display coordinates.
func clip(glyphs []glyph, g geometry, region Region) []glyph {
	limit := g.height() * region.Bottom
	out := make([]glyph, 0, len(glyphs))
	for _, gl := range glyphs {
		x, y := g.displayed(gl.X, gl.Y)
		if y < 0 || y > limit {
			continue
		}
		gl.X, gl.Y = x, y
		out = append(out, gl)
	}
	return out
}

// assemble joins glyphs into lines, top to bottom and left to right.
func assemble(glyphs []glyph) string {
	if len(glyphs) == 0 {
		return ""
	}
	sorted := append([]glyph(nil), glyphs...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Y != sorted[j].Y {
			return sorted[i].Y > sorted[j].Y
		}
		return sorted[i].X < sorted[j].X
	})

	var lines [][]glyph
	for _, gl := range sorted {
		n := len(lines)
		if n > 0 && math.Abs(lines[n-1][0].Y-gl.Y) <= lineTolerance(gl) {
			lines[n-1] = append(lines[n-1], gl)
			continue
		}
		lines = append(lines, []glyph{gl})
	}

	rendered := make([]string, 0, len(lines))
	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].X < line[j].X })
		var sb strings.Builder
		for i, gl := range line {
			if i > 0 {
				prev := line[i-1]
				if gl.X-(prev.X+prev.W) > spaceThreshold(prev) && !strings.HasSuffix(sb.String(), " ") {
					sb.WriteByte(' ')
				}
			}
			sb.WriteString(gl.S)
		}
		if text := strings.TrimSpace(sb.String()); text != "" {
			rendered = append(rendered, text)
		}
	}
	return strings.Join(rendered, "\n")
}

func fontSize(gl glyph) float64 {
	if gl.Size <= 0 {
		return defaultFontSize
	}
	return gl.Size
}

func lineTolerance(gl glyph) float64 {
	return math.Max(2, fontSize(gl)*0.5)
}

func spaceThreshold(gl glyph) float64 {
	return fontSize(gl) * 0.25
}
