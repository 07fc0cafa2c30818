package fraud

import (
	"context"
	"math"
	"testing"

	"resumeguard/internal/types"
)

const letterPageWidth, letterPageHeight = 612.0, 792.0

// gridGlyphs lays n glyphs out on a single letter page, 50 per line, none overlapping.
func gridGlyphs(n int, fill string, size float64) []types.Glyph {
	glyphs := make([]types.Glyph, n)
	for i := range glyphs {
		x := 72 + float64(i%50)*9
		y := 720 - float64(i/50)*14
		glyphs[i] = types.Glyph{
			Text:      string(rune('a' + i%26)),
			PageIndex: 0,
			X0:        x,
			Y0:        y,
			X1:        x + size/2,
			Y1:        y + size,
			FontSize:  size,
			FillColor: fill,
		}
	}
	return glyphs
}

func pdfDoc(glyphs []types.Glyph) *types.Document {
	return &types.Document{
		Type:   types.DocumentTypePDF,
		Pages:  []types.Page{{Index: 0, Width: letterPageWidth, Height: letterPageHeight}},
		Glyphs: glyphs,
	}
}

func textDoc(text string) *types.Document {
	return &types.Document{Type: types.DocumentTypeDOCX, Text: text}
}

func detect(t *testing.T, d Detector, in *Input) types.Signal {
	t.Helper()
	sig, err := d.Detect(context.Background(), in)
	if err != nil {
		t.Fatalf("%s: unexpected error: %v", d.Name(), err)
	}
	return sig
}

func approx(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
