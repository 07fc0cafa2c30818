package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"resumeguard/internal/errors"
	"resumeguard/internal/types"
)

// Flow layout used to give DOCX runs page geometry
const (
	docxMargin       = 72.0
	docxAdvance      = 0.5 // em
	docxLineHeight   = 1.2 // em
	docxTabStops     = 4
	docxDefaultSize  = 11.0
	twipsPerPoint    = 20.0
	halfPointsFactor = 2.0
)

// highlightColors maps w:highlight names to hex
var highlightColors = map[string]string{
	"black":       "#000000",
	"blue":        "#0000ff",
	"cyan":        "#00ffff",
	"green":       "#00ff00",
	"magenta":     "#ff00ff",
	"red":         "#ff0000",
	"yellow":      "#ffff00",
	"white":       "#ffffff",
	"darkBlue":    "#000080",
	"darkCyan":    "#008080",
	"darkGreen":   "#008000",
	"darkMagenta": "#800080",
	"darkRed":     "#800000",
	"darkYellow":  "#808000",
	"darkGray":    "#808080",
	"lightGray":   "#c0c0c0",
}

// DOCXExtractor reads word/document.xml and lays its runs out as glyphs
type DOCXExtractor struct {
	limits Limits
}

// NewDOCXExtractor creates a DOCX adapter.
func NewDOCXExtractor(limits Limits) *DOCXExtractor {
	return &DOCXExtractor{limits: limits}
}

// runProps is the formatting of a w:r that matters for detection
type runProps struct {
	size   float64
	color  string
	bg     string
	hidden bool
}

func (e *DOCXExtractor) Extract(ctx context.Context, data []byte) (*types.Document, error) {
	b := newBuilder(types.DocumentTypeDOCX, e.limits)
	b.doc.Operators = nil

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return b.doc, errors.NewExtractionError(errors.ErrCodeExtractionFailed, "failed to open DOCX archive", err)
	}

	defaults := runProps{size: docxDefaultSize}
	if styles, err := readZipFile(zr, "word/styles.xml", e.limits.MaxEntrySize); err == nil {
		defaults = parseDocDefaults(styles, defaults)
	}

	document, err := readZipFile(zr, "word/document.xml", e.limits.MaxEntrySize)
	if err != nil {
		return b.doc, errors.NewExtractionError(errors.ErrCodeExtractionFailed, "cannot read word/document.xml", err)
	}

	body, err := parseDocument(ctx, document, defaults)
	layout := body.layout()
	b.doc.Text = layout.text.String()
	layout.flush(b)
	if err != nil {
		return b.doc, errors.NewExtractionError(errors.ErrCodeExtractionFailed, "malformed word/document.xml", err)
	}
	return b.doc, nil
}

// readZipFile returns one archive member, refusing members that inflate past limit.
// A zero limit reads the member whole.
func readZipFile(zr *zip.Reader, name string, limit int64) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		// The header size is only a claim; the read below enforces the limit
		if limit > 0 && f.UncompressedSize64 > uint64(limit) {
			return nil, fmt.Errorf("%s inflates to %d bytes, limit is %d", name, f.UncompressedSize64, limit)
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()

		if limit <= 0 {
			return io.ReadAll(rc)
		}
		data, err := io.ReadAll(io.LimitReader(rc, limit+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > limit {
			return nil, fmt.Errorf("%s exceeds the %d byte limit", name, limit)
		}
		return data, nil
	}
	return nil, fmt.Errorf("%s not found", name)
}

// attr returns a w: attribute by local name
func attr(se xml.StartElement, local string) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

// applyRunProperty updates props from one child element of w:rPr
func applyRunProperty(se xml.StartElement, props *runProps) {
	val, _ := attr(se, "val")
	switch se.Name.Local {
	case "sz":
		if v, err := strconv.ParseFloat(val, 64); err == nil && v > 0 {
			props.size = v / halfPointsFactor
		}
	case "color":
		props.color = normalizeDocxColor(val)
	case "shd":
		if fill, ok := attr(se, "fill"); ok && props.bg == "" {
			props.bg = normalizeDocxColor(fill)
		}
	case "highlight":
		if c, ok := highlightColors[val]; ok {
			props.bg = c
		} else if val == "none" {
			props.bg = ""
		}
	case "vanish":
		props.hidden = val != "0" && val != "false" && val != "off"
	}
}

// normalizeDocxColor turns "auto" into unknown and bare six-digit hex into #rrggbb.
// Anything else is passed through for the detectors to reject.
func normalizeDocxColor(v string) string {
	v = strings.TrimSpace(v)
	if v == "" || strings.EqualFold(v, "auto") {
		return ""
	}
	if len(v) == 6 {
		if _, err := strconv.ParseUint(v, 16, 32); err == nil {
			return "#" + strings.ToLower(v)
		}
	}
	return v
}

// parseDocDefaults reads w:docDefaults/w:rPrDefault/w:rPr from styles.xml
func parseDocDefaults(data []byte, props runProps) runProps {
	dec := xml.NewDecoder(bytes.NewReader(data))
	inDefaults, inRPr := false, false
	for {
		tok, err := dec.Token()
		if err != nil {
			return props
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case t.Name.Local == "rPrDefault":
				inDefaults = true
			case inDefaults && t.Name.Local == "rPr":
				inRPr = true
			case inRPr:
				applyRunProperty(t, &props)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "rPr":
				inRPr = false
			case "rPrDefault":
				return props
			}
		}
	}
}

// flowLayout places characters left to right, top to bottom, page after page
type flowLayout struct {
	width, height float64
	page          int
	x, y          float64
	lineHeight    float64
	glyphs        []types.Glyph
	text          strings.Builder
	started       bool
}

func newFlowLayout() *flowLayout {
	return &flowLayout{width: defaultPageWidth, height: defaultPageHeight}
}

func (l *flowLayout) start() {
	if l.started {
		return
	}
	l.started = true
	l.x, l.y = docxMargin, l.height-docxMargin
}

func (l *flowLayout) newLine(size float64) {
	l.start()
	step := docxLineHeight * max(size, l.lineHeight)
	l.x = docxMargin
	l.y -= step
	l.lineHeight = 0
	if l.y < docxMargin {
		l.page++
		l.y = l.height - docxMargin
	}
}

func (l *flowLayout) write(s string, props runProps) {
	l.start()
	l.text.WriteString(s)
	for _, r := range s {
		switch r {
		case '\n':
			l.newLine(props.size)
			continue
		case '\t':
			l.x += docxTabStops * docxAdvance * props.size
			continue
		}

		advance := docxAdvance * props.size
		if l.x+advance > l.width-docxMargin {
			l.newLine(props.size)
		}
		l.lineHeight = max(l.lineHeight, props.size)
		if !unicode.IsSpace(r) {
			l.glyphs = append(l.glyphs, types.Glyph{
				Text:      string(r),
				PageIndex: l.page,
				X0:        l.x,
				Y0:        l.y,
				X1:        l.x + advance,
				Y1:        l.y + props.size,
				FontSize:  props.size,
				FillColor: props.color,
				BgColor:   props.bg,
				Hidden:    props.hidden,
			})
		}
		l.x += advance
	}
}

// flush copies pages and glyphs into the builder, respecting its limits
func (l *flowLayout) flush(b *builder) {
	pages := 0
	for i := 0; i <= l.page; i++ {
		if !b.addPage(types.Page{Index: i, Width: l.width, Height: l.height}) {
			break
		}
		pages++
	}
	for _, g := range l.glyphs {
		if g.PageIndex >= pages {
			break
		}
		b.addGlyph(g)
	}
}

// segment is a piece of run text with the formatting it was written in
type segment struct {
	text  string
	props runProps
}

// docxBody is the parsed body of document.xml before layout
type docxBody struct {
	segments      []segment
	width, height float64
}

// layout places the body on pages of the section size
func (d *docxBody) layout() *flowLayout {
	l := newFlowLayout()
	if d.width > 0 && d.height > 0 {
		l.width, l.height = d.width, d.height
	}
	for _, s := range d.segments {
		l.write(s.text, s.props)
	}
	return l
}

// parseDocument streams document.xml, collecting run text with its formatting.
// The page size comes from w:pgSz, which Word writes at the end of the body.
func parseDocument(ctx context.Context, data []byte, defaults runProps) (*docxBody, error) {
	body := &docxBody{}
	dec := xml.NewDecoder(bytes.NewReader(data))

	var (
		inRun, inRPr, inText, inPPr bool
		props                       runProps
		lastSize                    = defaults.size
		tokens                      int
	)

	for {
		if tokens++; tokens%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return body, err
			}
		}

		tok, err := dec.Token()
		if err == io.EOF {
			return body, nil
		}
		if err != nil {
			return body, err
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "pgSz":
				body.width = twipsAttr(t, "w")
				body.height = twipsAttr(t, "h")
			case "pPr":
				inPPr = true
			case "r":
				inRun = true
				props = defaults
			case "rPr":
				inRPr = inRun && !inPPr
			case "t":
				inText = inRun
			case "tab":
				if inRun {
					body.segments = append(body.segments, segment{"\t", props})
				}
			case "br", "cr":
				if inRun {
					body.segments = append(body.segments, segment{"\n", props})
				}
			default:
				if inRPr {
					applyRunProperty(t, &props)
				}
			}
		case xml.CharData:
			if inText {
				body.segments = append(body.segments, segment{string(t), props})
				lastSize = props.size
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "pPr":
				inPPr = false
			case "rPr":
				inRPr = false
			case "t":
				inText = false
			case "r":
				inRun = false
			case "p":
				body.segments = append(body.segments, segment{"\n", runProps{size: lastSize}})
			}
		}
	}
}

func twipsAttr(se xml.StartElement, local string) float64 {
	if v, ok := attr(se, local); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			return f / twipsPerPoint
		}
	}
	return 0
}
