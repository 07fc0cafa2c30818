package fraud

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"math"
	"slices"

	"resumeguard/internal/types"
)

const (
	lightLuminance      = 0.9
	tinyGlyphSize       = 2.0
	smallTextSize       = 3.0
	offPageMargin       = 50.0
	overlapTolerance    = 1.0
	overlapPageLimit    = 5
	colorCollisionLimit = 30.0
	whiteRatioLimit     = 0.05
	tinyRatioLimit      = 0.10
	maxWhiteIndicators  = 10
)

// WhiteTextDetector flags glyphs that render invisibly: light fill, tiny size,
// off-page placement, stacked on other glyphs, or painted in the background color.
type WhiteTextDetector struct{}

func (d *WhiteTextDetector) Name() string { return types.SignalWhiteText }

func (d *WhiteTextDetector) Detect(ctx context.Context, in *Input) (types.Signal, error) {
	doc := in.Document
	total := len(doc.Glyphs)

	suspicious := 0
	small := 0
	var indicators, malformed []string

	for i, g := range doc.Glyphs {
		if i%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return types.Signal{}, err
			}
		}

		// An unparsable color only disables the color checks of its own glyph
		fg, hasFg, err := parseHexColor(g.FillColor)
		if err != nil {
			malformed = append(malformed, g.FillColor)
		}
		if hasFg && fg.luminance() > lightLuminance {
			suspicious++
			indicators = append(indicators, fmt.Sprintf("Light color text: %s", g.FillColor))
		}

		// Size zero comes from a 0 Tf or a degenerate text matrix
		if g.FontSize < tinyGlyphSize {
			suspicious++
			indicators = append(indicators, fmt.Sprintf("Extremely small font: %g", g.FontSize))
		}
		if g.FontSize < smallTextSize {
			small++
		}

		if page, ok := doc.PageByIndex(g.PageIndex); ok && offPage(g, page) {
			suspicious++
			indicators = append(indicators, fmt.Sprintf("Text positioned outside page bounds: (%g, %g)", g.X0, g.Y0))
		}

		bg, hasBg, err := parseHexColor(g.BgColor)
		if err != nil {
			malformed = append(malformed, g.BgColor)
		}
		if hasFg && hasBg && fg.distance(bg) < colorCollisionLimit {
			suspicious++
			indicators = append(indicators, fmt.Sprintf("Text and background colors too similar: %s on %s", g.FillColor, g.BgColor))
		}

		if g.Hidden {
			suspicious++
			indicators = append(indicators, fmt.Sprintf("Hidden text run: %q", g.Text))
		}
	}

	overlaps, err := countOverlaps(ctx, doc.Glyphs)
	if err != nil {
		return types.Signal{}, err
	}
	for _, pc := range overlaps {
		if pc.count > overlapPageLimit {
			suspicious += pc.count
			indicators = append(indicators, fmt.Sprintf("Suspicious text overlapping detected on page %d: %d instances", pc.page+1, pc.count))
		}
	}

	var whiteRatio, smallRatio float64
	if total > 0 {
		whiteRatio = float64(suspicious) / float64(total)
		smallRatio = float64(small) / float64(total)
	}

	detected := false
	score := 0.0
	var issues []string
	if whiteRatio > whiteRatioLimit {
		detected = true
		score = math.Min(whiteRatio*3, 1)
		issues = append(issues, fmt.Sprintf("Potential white/hidden text detected (%s of text)", percent(whiteRatio)))
	}
	if smallRatio > tinyRatioLimit {
		detected = true
		score = math.Max(score, math.Min(smallRatio*2, 1))
		issues = append(issues, fmt.Sprintf("Excessive tiny text detected (%s of text)", percent(smallRatio)))
	}

	details := map[string]any{
		"suspicious_elements":   suspicious,
		"total_elements":        total,
		"white_text_ratio":      whiteRatio,
		"tiny_text_ratio":       smallRatio,
		"white_text_indicators": firstN(indicators, maxWhiteIndicators),
		"total_indicators":      len(indicators),
	}
	if len(malformed) > 0 {
		details["malformed_colors"] = firstN(malformed, maxWhiteIndicators)
		details["malformed_color_count"] = len(malformed)
	}
	return types.NewSignal(d.Name(), detected, score, issues, details), nil
}

// offPage reports whether the glyph origin lies outside the page plus margin
func offPage(g types.Glyph, page types.Page) bool {
	return g.X0 < 0 || g.Y0 < 0 || g.X0 > page.Width+offPageMargin || g.Y0 > page.Height+offPageMargin
}

type pageCount struct {
	page, count int
}

// countOverlaps counts, per page, unordered glyph pairs whose origins lie within
// overlapTolerance on both axes while showing different text. Pages are returned in order.
func countOverlaps(ctx context.Context, glyphs []types.Glyph) ([]pageCount, error) {
	byPage := make(map[int][]types.Glyph)
	for _, g := range glyphs {
		byPage[g.PageIndex] = append(byPage[g.PageIndex], g)
	}
	pages := slices.Sorted(maps.Keys(byPage))

	counts := make([]pageCount, 0, len(pages))
	for _, page := range pages {
		pageGlyphs := byPage[page]
		slices.SortStableFunc(pageGlyphs, func(a, b types.Glyph) int {
			return cmp.Compare(a.X0, b.X0)
		})
		n := 0
		for i := range pageGlyphs {
			if i%checkEvery == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			for j := i + 1; j < len(pageGlyphs); j++ {
				if pageGlyphs[j].X0-pageGlyphs[i].X0 >= overlapTolerance {
					break
				}
				if math.Abs(pageGlyphs[j].Y0-pageGlyphs[i].Y0) < overlapTolerance && pageGlyphs[i].Text != pageGlyphs[j].Text {
					n++
				}
			}
		}
		counts = append(counts, pageCount{page: page, count: n})
	}
	return counts, nil
}

func firstN(items []string, n int) []string {
	if len(items) > n {
		return items[:n]
	}
	if items == nil {
		return []string{}
	}
	return items
}
