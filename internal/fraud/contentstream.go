package fraud

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"resumeguard/internal/types"
)

const (
	whiteColorOpLimit   = 5
	positionLimit       = 1000.0
	streamWeight        = 0.2
	invisibleRenderMode = 3
	maxStreamIndicators = 5
)

// ContentStreamDetector inspects literal PDF operators for white fills,
// invisible text rendering, embedded white style strings and off-page moves.
type ContentStreamDetector struct {
	rules *Rules
}

func (d *ContentStreamDetector) Name() string { return types.SignalPDFStreamAnalysis }

// pageStream accumulates what one page's operators say
type pageStream struct {
	index       int
	text        strings.Builder
	whiteOps    int
	invisibleTr int
	offPageTd   int
}

func (d *ContentStreamDetector) Detect(ctx context.Context, in *Input) (types.Signal, error) {
	doc := in.Document
	if doc.Type != types.DocumentTypePDF {
		return types.NewSignal(d.Name(), false, 0, nil, map[string]any{
			"skipped": fmt.Sprintf("no content streams in %s documents", doc.Type),
		}), nil
	}

	var pages []*pageStream
	var current *pageStream
	for i, op := range doc.Operators {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return types.Signal{}, err
			}
		}
		if current == nil || current.index != op.PageIndex {
			current = &pageStream{index: op.PageIndex}
			pages = append(pages, current)
		}
		current.add(op)
	}

	hits := 0
	var indicators []string
	for _, page := range pages {
		text := page.text.String()
		for _, re := range d.rules.style {
			matches := re.FindAllString(text, -1)
			if len(matches) > 0 {
				hits += len(matches)
				indicators = append(indicators, fmt.Sprintf("White font pattern found: %s", matches[0]))
			}
		}
		if page.invisibleTr > 0 {
			hits += page.invisibleTr
			indicators = append(indicators, fmt.Sprintf("Invisible text rendering mode detected: %d instances", page.invisibleTr))
		}
		if page.whiteOps > whiteColorOpLimit {
			hits++
			indicators = append(indicators, fmt.Sprintf("Excessive white color commands: %d", page.whiteOps))
		}
		if page.offPageTd > 0 {
			hits += page.offPageTd
			indicators = append(indicators, fmt.Sprintf("Text positioned outside page: %d instances", page.offPageTd))
		}
	}

	var issues []string
	if hits > 0 {
		issues = append(issues, fmt.Sprintf("PDF content stream manipulation detected (%d indicators)", hits))
	}

	details := map[string]any{
		"suspicious_patterns":   hits,
		"total_content_streams": len(pages),
		"white_font_indicators": firstN(indicators, maxStreamIndicators),
		"total_indicators":      len(indicators),
	}
	return types.NewSignal(d.Name(), hits > 0, math.Min(float64(hits)*streamWeight, 1), issues, details), nil
}

func (p *pageStream) add(op types.ContentStreamOperator) {
	for _, operand := range op.Operands {
		p.text.WriteString(operand)
		p.text.WriteByte(' ')
	}
	p.text.WriteString(op.Operator)
	p.text.WriteByte('\n')

	switch op.Operator {
	case "rg", "RG":
		if numbersEqual(op.Operands, 3, 1) {
			p.whiteOps++
		}
	case "g", "G":
		if numbersEqual(op.Operands, 1, 1) {
			p.whiteOps++
		}
	case "k", "K":
		if numbersEqual(op.Operands, 4, 0) {
			p.whiteOps++
		}
	case "Tr":
		if numbersEqual(op.Operands, 1, invisibleRenderMode) {
			p.invisibleTr++
		}
	case "Td":
		if len(op.Operands) == 2 {
			x, errX := strconv.ParseFloat(op.Operands[0], 64)
			y, errY := strconv.ParseFloat(op.Operands[1], 64)
			if errX == nil && errY == nil && (outsidePosition(x) || outsidePosition(y)) {
				p.offPageTd++
			}
		}
	}
}

// numbersEqual reports whether operands are exactly n numbers all equal to want
func numbersEqual(operands []string, n int, want float64) bool {
	if len(operands) != n {
		return false
	}
	for _, operand := range operands {
		v, err := strconv.ParseFloat(operand, 64)
		if err != nil || v != want {
			return false
		}
	}
	return true
}

func outsidePosition(v float64) bool {
	return v < 0 || v > positionLimit
}
