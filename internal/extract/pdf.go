package extract

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"resumeguard/internal/errors"
	"resumeguard/internal/types"

	"github.com/ledongthuc/pdf"
)

// Letter size, used when a page has no usable MediaBox
const defaultPageWidth, defaultPageHeight = 612.0, 792.0

// PDFExtractor decodes PDF content streams into glyphs and operators
type PDFExtractor struct {
	limits Limits
}

// NewPDFExtractor creates a PDF adapter.
func NewPDFExtractor(limits Limits) *PDFExtractor {
	return &PDFExtractor{limits: limits}
}

func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (doc *types.Document, err error) {
	b := newBuilder(types.DocumentTypePDF, e.limits)

	// The PDF library panics on malformed cross-reference and object data
	defer func() {
		if r := recover(); r != nil {
			doc = b.doc
			err = errors.NewExtractionError(errors.ErrCodeExtractionFailed,
				fmt.Sprintf("malformed PDF structure: %v", r), nil)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return b.doc, errors.NewExtractionError(errors.ErrCodeExtractionFailed, "failed to open PDF", err)
	}

	fonts := make(map[string]*pdf.Font)
	var text strings.Builder
	var pageErrs []error

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return b.doc, err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		width, height := mediaBox(page.V)
		if !b.addPage(types.Page{Index: i - 1, Width: width, Height: height}) {
			break
		}

		if err := walkPage(b, page, i-1); err != nil {
			pageErrs = append(pageErrs, fmt.Errorf("page %d: %w", i, err))
		}

		for _, name := range page.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := page.Font(name)
				fonts[name] = &f
			}
		}
		pageText, err := page.GetPlainText(fonts)
		if err != nil {
			pageErrs = append(pageErrs, fmt.Errorf("page %d text: %w", i, err))
			continue
		}
		text.WriteString(pageText)
		text.WriteByte('\n')
	}
	b.doc.Text = text.String()

	if len(pageErrs) > 0 {
		return b.doc, errors.NewExtractionError(errors.ErrCodeExtractionFailed,
			fmt.Sprintf("%d page(s) could not be fully decoded", len(pageErrs)), stderrors.Join(pageErrs...))
	}
	return b.doc, nil
}

// mediaBox finds the page size, walking up the page tree for an inherited box
func mediaBox(v pdf.Value) (float64, float64) {
	for depth := 0; !v.IsNull() && depth < 32; depth++ {
		box := v.Key("MediaBox")
		if box.Kind() == pdf.Array && box.Len() == 4 {
			w := box.Index(2).Float64() - box.Index(0).Float64()
			h := box.Index(3).Float64() - box.Index(1).Float64()
			if w > 0 && h > 0 {
				return w, h
			}
		}
		v = v.Key("Parent")
	}
	return defaultPageWidth, defaultPageHeight
}

// walkPage interprets the page's content streams, recovering from parser panics
func walkPage(b *builder, page pdf.Page, index int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed content stream: %v", r)
		}
	}()

	w := newPageWalker(b, page, index)
	contents := page.V.Key("Contents")
	if contents.Kind() == pdf.Array {
		for i := 0; i < contents.Len(); i++ {
			pdf.Interpret(contents.Index(i), w.do)
		}
		return nil
	}
	pdf.Interpret(contents, w.do)
	return nil
}
