package extract

import (
	"context"
	"slices"
	"strings"
	"testing"

	"resumeguard/internal/types"
)

const resumeStream = `BT
/F1 12 Tf
72 720 Td
(Hello) Tj
ET
1 1 1 rg
BT
/F1 1 Tf
10 0 0 10 72 700 Tm
(Hi) Tj
3 Tr
(X) Tj
ET`

func TestPDFExtractor(t *testing.T) {
	doc, err := NewPDFExtractor(Limits{}).Extract(context.Background(), pdfBytes(resumeStream))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	if doc.Type != types.DocumentTypePDF {
		t.Errorf("Type = %v", doc.Type)
	}
	if len(doc.Pages) != 1 || doc.Pages[0].Width != 612 || doc.Pages[0].Height != 792 {
		t.Errorf("Pages = %+v, want one inherited letter page", doc.Pages)
	}

	var text strings.Builder
	for _, g := range doc.Glyphs {
		text.WriteString(g.Text)
	}
	if text.String() != "HelloHiX" {
		t.Fatalf("glyph text = %q, want HelloHiX", text.String())
	}

	first := doc.Glyphs[0]
	if first.X0 != 72 || first.Y0 != 720 || first.FontSize != 12 || first.FillColor != "#000000" {
		t.Errorf("first glyph = %+v", first)
	}
	if second := doc.Glyphs[1]; second.X0 <= first.X0 || second.Y0 != first.Y0 {
		t.Errorf("second glyph = %+v should advance along the baseline", second)
	}

	scaled := doc.Glyphs[5]
	if scaled.FontSize != 10 || scaled.FillColor != "#ffffff" || scaled.X0 != 72 || scaled.Y0 != 700 {
		t.Errorf("matrix-scaled glyph = %+v, want size 10 white at (72, 700)", scaled)
	}
	if doc.Glyphs[5].Hidden || !doc.Glyphs[7].Hidden {
		t.Error("only glyphs shown in render mode 3 are hidden")
	}

	wantOps := []string{"BT", "Tf", "Td", "Tj", "ET", "rg", "BT", "Tf", "Tm", "Tj", "Tr", "Tj", "ET"}
	var gotOps []string
	for _, op := range doc.Operators {
		gotOps = append(gotOps, op.Operator)
	}
	if !slices.Equal(gotOps, wantOps) {
		t.Errorf("operators = %v, want %v", gotOps, wantOps)
	}
	if rg := doc.Operators[5]; !slices.Equal(rg.Operands, []string{"1", "1", "1"}) {
		t.Errorf("rg operands = %q", rg.Operands)
	}
	if tf := doc.Operators[1]; !slices.Equal(tf.Operands, []string{"/F1", "12"}) {
		t.Errorf("Tf operands = %q", tf.Operands)
	}
	if tj := doc.Operators[3]; !slices.Equal(tj.Operands, []string{"(Hello)"}) {
		t.Errorf("Tj operands = %q", tj.Operands)
	}

	if !strings.Contains(doc.Text, "Hello") {
		t.Errorf("Text = %q, want it to contain Hello", doc.Text)
	}
}

func TestPDFExtractorBackgroundRectangles(t *testing.T) {
	stream := `0.9 0.9 0.9 rg
0 0 612 792 re
f
0.8 g
BT
/F1 11 Tf
100 100 Td
(a) Tj
ET`

	doc, err := NewPDFExtractor(Limits{}).Extract(context.Background(), pdfBytes(stream))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(doc.Glyphs) != 1 {
		t.Fatalf("got %d glyphs, want 1", len(doc.Glyphs))
	}
	if g := doc.Glyphs[0]; g.BgColor != "#e6e6e6" || g.FillColor != "#cccccc" {
		t.Errorf("glyph = %+v, want #cccccc on #e6e6e6", g)
	}
}

func TestPDFExtractorGraphicsStateStack(t *testing.T) {
	stream := `q
1 0 0 1 50 50 cm
1 1 1 rg
BT /F1 10 Tf 0 0 Td (a) Tj ET
Q
BT /F1 10 Tf 0 0 Td (b) Tj ET`

	doc, err := NewPDFExtractor(Limits{}).Extract(context.Background(), pdfBytes(stream))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if len(doc.Glyphs) != 2 {
		t.Fatalf("got %d glyphs, want 2", len(doc.Glyphs))
	}
	a, b := doc.Glyphs[0], doc.Glyphs[1]
	if a.X0 != 50 || a.Y0 != 50 || a.FillColor != "#ffffff" {
		t.Errorf("inside q: %+v", a)
	}
	if b.X0 != 0 || b.Y0 != 0 || b.FillColor != "#000000" {
		t.Errorf("after Q: %+v", b)
	}
}

func TestPDFExtractorLimits(t *testing.T) {
	doc, _ := NewPDFExtractor(Limits{MaxGlyphs: 3, MaxOperators: 4}).Extract(context.Background(), pdfBytes(resumeStream))
	if len(doc.Glyphs) != 3 {
		t.Errorf("got %d glyphs, want 3", len(doc.Glyphs))
	}
	if len(doc.Operators) != 4 {
		t.Errorf("got %d operators, want 4", len(doc.Operators))
	}
}

func TestPDFExtractorZeroSizeText(t *testing.T) {
	stream := `BT
/F1 11 Tf
72 720 Td
(Visible) Tj
/F1 0 Tf
(kubernetes) Tj
ET
BT
/F1 11 Tf
0 0 0 0 72 700 Tm
(docker) Tj
ET`
	doc, err := NewPDFExtractor(Limits{}).Extract(context.Background(), pdfBytes(stream))
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	var zero strings.Builder
	for _, g := range doc.Glyphs {
		if g.FontSize == 0 {
			zero.WriteString(g.Text)
		}
	}
	if zero.String() != "kubernetesdocker" {
		t.Errorf("zero size glyph text = %q, want kubernetesdocker", zero.String())
	}
}

func TestPDFExtractorCorruptInput(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":     nil,
		"garbage":   []byte("this is not a pdf at all"),
		"truncated": pdfBytes(resumeStream)[:120],
	} {
		t.Run(name, func(t *testing.T) {
			doc, err := NewPDFExtractor(Limits{}).Extract(context.Background(), data)
			if err == nil {
				t.Error("expected an error")
			}
			if doc == nil || len(doc.Glyphs) != 0 || doc.Type != types.DocumentTypePDF {
				t.Errorf("doc = %+v, want an empty PDF document", doc)
			}
		})
	}
}

func TestColorFromComponents(t *testing.T) {
	tests := []struct {
		in   []float64
		want string
	}{
		{[]float64{1}, "#ffffff"},
		{[]float64{0}, "#000000"},
		{[]float64{1, 0, 0}, "#ff0000"},
		{[]float64{0, 0, 0, 0}, "#ffffff"},
		{[]float64{0, 0, 0, 1}, "#000000"},
		{[]float64{2, -1, 0.5}, "#ff0080"},
		{[]float64{1, 1}, ""},
	}
	for _, tt := range tests {
		if got := colorFromComponents(tt.in); got != tt.want {
			t.Errorf("colorFromComponents(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestMatrixMul(t *testing.T) {
	scale := matrix{2, 0, 0, 2, 0, 0}
	move := translate(10, 20)

	x, y := scale.mul(move).apply(1, 1)
	if x != 12 || y != 22 {
		t.Errorf("scale then move = (%v, %v), want (12, 22)", x, y)
	}
	x, y = move.mul(scale).apply(1, 1)
	if x != 22 || y != 42 {
		t.Errorf("move then scale = (%v, %v), want (22, 42)", x, y)
	}
}
