package extract

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"resumeguard/internal/types"

	"github.com/ledongthuc/pdf"
)

// matrix is a PDF affine transform [a b c d e f]
type matrix [6]float64

var identity = matrix{1, 0, 0, 1, 0, 0}

// mul returns m×n, applying m first
func (m matrix) mul(n matrix) matrix {
	return matrix{
		m[0]*n[0] + m[1]*n[2],
		m[0]*n[1] + m[1]*n[3],
		m[2]*n[0] + m[3]*n[2],
		m[2]*n[1] + m[3]*n[3],
		m[4]*n[0] + m[5]*n[2] + n[4],
		m[4]*n[1] + m[5]*n[3] + n[5],
	}
}

func (m matrix) apply(x, y float64) (float64, float64) {
	return x*m[0] + y*m[2] + m[4], x*m[1] + y*m[3] + m[5]
}

func translate(tx, ty float64) matrix {
	return matrix{1, 0, 0, 1, tx, ty}
}

// graphicsState is what q saves and Q restores, text parameters included
type graphicsState struct {
	ctm       matrix
	fill      string
	stroke    string
	font      *pageFont
	size      float64
	charSpace float64
	wordSpace float64
	hscale    float64
	leading   float64
	rise      float64
	render    int
}

type pageFont struct {
	font    pdf.Font
	enc     pdf.TextEncoding
	twoByte bool
}

type box struct {
	x0, y0, x1, y1 float64
}

func (r box) contains(x, y float64) bool {
	return x >= r.x0 && x <= r.x1 && y >= r.y0 && y <= r.y1
}

type filledBox struct {
	box
	color string
}

// pageWalker tracks enough graphics and text state to place every shown glyph
type pageWalker struct {
	b      *builder
	page   pdf.Page
	index  int
	fonts  map[string]*pageFont
	gs     graphicsState
	saved  []graphicsState
	tm     matrix
	tlm    matrix
	path   []box
	filled []filledBox
}

func newPageWalker(b *builder, page pdf.Page, index int) *pageWalker {
	return &pageWalker{
		b:     b,
		page:  page,
		index: index,
		fonts: make(map[string]*pageFont),
		gs: graphicsState{
			ctm:    identity,
			fill:   "#000000",
			stroke: "#000000",
			hscale: 100,
		},
		tm:  identity,
		tlm: identity,
	}
}

func (w *pageWalker) do(stk *pdf.Stack, op string) {
	args := make([]pdf.Value, stk.Len())
	for i := len(args) - 1; i >= 0; i-- {
		args[i] = stk.Pop()
	}

	operands := make([]string, len(args))
	for i, a := range args {
		operands[i] = operandString(a)
	}
	w.b.addOperator(types.ContentStreamOperator{PageIndex: w.index, Operator: op, Operands: operands})

	num := func(i int) float64 {
		if i < len(args) {
			return args[i].Float64()
		}
		return 0
	}

	switch op {
	case "q":
		w.saved = append(w.saved, w.gs)
	case "Q":
		if n := len(w.saved); n > 0 {
			w.gs = w.saved[n-1]
			w.saved = w.saved[:n-1]
		}
	case "cm":
		if len(args) == 6 {
			w.gs.ctm = matrix{num(0), num(1), num(2), num(3), num(4), num(5)}.mul(w.gs.ctm)
		}

	case "g", "rg", "k", "sc", "scn":
		if c := colorFromComponents(numbers(args)); c != "" {
			w.gs.fill = c
		}
	case "G", "RG", "K", "SC", "SCN":
		if c := colorFromComponents(numbers(args)); c != "" {
			w.gs.stroke = c
		}
	case "cs":
		w.gs.fill = "#000000"
	case "CS":
		w.gs.stroke = "#000000"

	case "re":
		if len(args) == 4 {
			w.path = append(w.path, w.deviceBox(num(0), num(1), num(2), num(3)))
		}
	case "f", "F", "f*", "B", "B*", "b", "b*":
		for _, r := range w.path {
			w.filled = append(w.filled, filledBox{box: r, color: w.gs.fill})
		}
		w.path = w.path[:0]
	case "n", "S", "s":
		w.path = w.path[:0]

	case "BT":
		w.tm, w.tlm = identity, identity
	case "Tf":
		if len(args) == 2 {
			w.gs.font = w.font(args[0].Name())
			w.gs.size = num(1)
		}
	case "Tc":
		w.gs.charSpace = num(0)
	case "Tw":
		w.gs.wordSpace = num(0)
	case "Tz":
		w.gs.hscale = num(0)
	case "TL":
		w.gs.leading = num(0)
	case "Ts":
		w.gs.rise = num(0)
	case "Tr":
		w.gs.render = int(num(0))
	case "Td":
		w.moveLine(num(0), num(1))
	case "TD":
		w.gs.leading = -num(1)
		w.moveLine(num(0), num(1))
	case "Tm":
		if len(args) == 6 {
			w.tlm = matrix{num(0), num(1), num(2), num(3), num(4), num(5)}
			w.tm = w.tlm
		}
	case "T*":
		w.moveLine(0, -w.gs.leading)
	case "Tj":
		if len(args) == 1 {
			w.show(args[0].RawString())
		}
	case "'":
		w.moveLine(0, -w.gs.leading)
		if len(args) == 1 {
			w.show(args[0].RawString())
		}
	case "\"":
		if len(args) == 3 {
			w.gs.wordSpace, w.gs.charSpace = num(0), num(1)
			w.moveLine(0, -w.gs.leading)
			w.show(args[2].RawString())
		}
	case "TJ":
		if len(args) == 1 && args[0].Kind() == pdf.Array {
			arr := args[0]
			for i := 0; i < arr.Len(); i++ {
				el := arr.Index(i)
				switch el.Kind() {
				case pdf.String:
					w.show(el.RawString())
				case pdf.Integer, pdf.Real:
					tx := -el.Float64() / 1000 * w.gs.size * w.gs.hscale / 100
					w.tm = translate(tx, 0).mul(w.tm)
				}
			}
		}
	}
}

func (w *pageWalker) moveLine(tx, ty float64) {
	w.tlm = translate(tx, ty).mul(w.tlm)
	w.tm = w.tlm
}

func (w *pageWalker) font(name string) *pageFont {
	if f, ok := w.fonts[name]; ok {
		return f
	}
	font := w.page.Font(name)
	f := &pageFont{
		font:    font,
		enc:     font.Encoder(),
		twoByte: font.V.Key("Subtype").Name() == "Type0",
	}
	w.fonts[name] = f
	return f
}

// deviceBox transforms a user-space rectangle by the CTM and returns its bounds
func (w *pageWalker) deviceBox(x, y, width, height float64) box {
	xs := make([]float64, 0, 4)
	ys := make([]float64, 0, 4)
	for _, p := range [][2]float64{{x, y}, {x + width, y}, {x, y + height}, {x + width, y + height}} {
		dx, dy := w.gs.ctm.apply(p[0], p[1])
		xs = append(xs, dx)
		ys = append(ys, dy)
	}
	return box{x0: slices.Min(xs), y0: slices.Min(ys), x1: slices.Max(xs), y1: slices.Max(ys)}
}

// show emits one glyph per character code and advances the text matrix
func (w *pageWalker) show(raw string) {
	step := 1
	if w.gs.font != nil && w.gs.font.twoByte {
		step = 2
	}
	hs := w.gs.hscale / 100

	for i := 0; i+step <= len(raw); i += step {
		code := raw[i : i+step]
		codeValue := int(code[0])
		if step == 2 {
			codeValue = codeValue<<8 | int(code[1])
		}

		width := 0.0
		text := code
		if f := w.gs.font; f != nil {
			width = f.font.Width(codeValue) / 1000
			if f.enc != nil {
				text = f.enc.Decode(code)
			}
		}
		if width <= 0 {
			width = 0.5
		}

		m := w.tm.mul(w.gs.ctm)
		trm := matrix{w.gs.size * hs, 0, 0, w.gs.size, 0, w.gs.rise}.mul(m)
		x, y := trm[4], trm[5]

		if strings.TrimFunc(text, unicode.IsSpace) != "" {
			size := math.Abs(w.gs.size) * math.Hypot(m[2], m[3])
			advance := width * math.Abs(w.gs.size) * hs * math.Hypot(m[0], m[1])
			color := w.gs.fill
			if w.gs.render == 1 || w.gs.render == 5 {
				color = w.gs.stroke
			}
			w.b.addGlyph(types.Glyph{
				Text:      text,
				PageIndex: w.index,
				X0:        x,
				Y0:        y,
				X1:        x + advance,
				Y1:        y + size,
				FontSize:  size,
				FillColor: color,
				BgColor:   w.backgroundAt(x, y),
				Hidden:    w.gs.render == 3 || w.gs.render == 7,
			})
		}

		tx := width*w.gs.size + w.gs.charSpace
		if step == 1 && code == " " {
			tx += w.gs.wordSpace
		}
		w.tm = translate(tx*hs, 0).mul(w.tm)
	}
}

// backgroundAt is the color of the most recently filled rectangle under a point
func (w *pageWalker) backgroundAt(x, y float64) string {
	for i := len(w.filled) - 1; i >= 0; i-- {
		if w.filled[i].contains(x, y) {
			return w.filled[i].color
		}
	}
	return ""
}

func numbers(args []pdf.Value) []float64 {
	out := make([]float64, 0, len(args))
	for _, a := range args {
		if k := a.Kind(); k == pdf.Integer || k == pdf.Real {
			out = append(out, a.Float64())
		}
	}
	return out
}

// colorFromComponents maps gray, RGB or CMYK components to hex; other counts give ""
func colorFromComponents(c []float64) string {
	switch len(c) {
	case 1:
		return hexColor(c[0], c[0], c[0])
	case 3:
		return hexColor(c[0], c[1], c[2])
	case 4:
		k := 1 - clamp01(c[3])
		return hexColor((1-clamp01(c[0]))*k, (1-clamp01(c[1]))*k, (1-clamp01(c[2]))*k)
	}
	return ""
}

func hexColor(r, g, b float64) string {
	return fmt.Sprintf("#%02x%02x%02x", channel(r), channel(g), channel(b))
}

func channel(v float64) int {
	return int(math.Round(clamp01(v) * 255))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// operandString renders an operand the way it would appear in the content stream
func operandString(v pdf.Value) string {
	switch v.Kind() {
	case pdf.Integer:
		return strconv.FormatInt(v.Int64(), 10)
	case pdf.Real:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case pdf.Name:
		return "/" + v.Name()
	case pdf.String:
		return "(" + v.RawString() + ")"
	case pdf.Bool:
		return strconv.FormatBool(v.Bool())
	case pdf.Array:
		parts := make([]string, v.Len())
		for i := range parts {
			parts[i] = operandString(v.Index(i))
		}
		return "[" + strings.Join(parts, " ") + "]"
	case pdf.Dict:
		var sb strings.Builder
		sb.WriteString("<<")
		for _, key := range v.Keys() {
			sb.WriteString("/" + key + " " + operandString(v.Key(key)) + " ")
		}
		sb.WriteString(">>")
		return sb.String()
	default:
		return "null"
	}
}
