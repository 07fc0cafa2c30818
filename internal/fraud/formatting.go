package fraud

import (
	"context"
	"fmt"

	"resumeguard/internal/types"
)

const (
	smallTextRatioLimit = 0.05
	sizeVarianceLimit   = 50.0
	smallTextBonus      = 0.3
	sizeVarianceBonus   = 0.2
)

// FormattingAnomalyDetector looks at the font size distribution for
// unreadably small text and erratic sizing.
type FormattingAnomalyDetector struct{}

func (d *FormattingAnomalyDetector) Name() string { return types.SignalSuspiciousFormatting }

func (d *FormattingAnomalyDetector) Detect(_ context.Context, in *Input) (types.Signal, error) {
	var sizes []float64
	colors := make(map[string]struct{})
	for _, g := range in.Document.Glyphs {
		sizes = append(sizes, g.FontSize)
		if g.FillColor != "" {
			colors[g.FillColor] = struct{}{}
		}
	}

	stats := summarize(sizes)
	score := 0.0
	var issues []string

	if len(sizes) > 0 {
		small := 0
		for _, s := range sizes {
			if s < smallTextSize {
				small++
			}
		}
		if ratio := float64(small) / float64(len(sizes)); ratio > smallTextRatioLimit {
			score += smallTextBonus
			issues = append(issues, fmt.Sprintf("Unusually small text detected (%s)", percent(ratio)))
		}
		if stats.variance > sizeVarianceLimit {
			score += sizeVarianceBonus
			issues = append(issues, "Highly variable font sizes detected")
		}
	}

	details := map[string]any{
		"font_sizes": map[string]float64{
			"min":      stats.min,
			"max":      stats.max,
			"avg":      stats.mean,
			"variance": stats.variance,
		},
		"color_count": len(colors),
		"raw_score":   score,
	}
	return types.NewSignal(d.Name(), len(issues) > 0, score, issues, details), nil
}

type sizeStats struct {
	min, max, mean, variance float64
}

// summarize computes min, max, mean and population variance.
func summarize(values []float64) sizeStats {
	if len(values) == 0 {
		return sizeStats{}
	}
	st := sizeStats{min: values[0], max: values[0]}
	sum := 0.0
	for _, v := range values {
		st.min = min(st.min, v)
		st.max = max(st.max, v)
		sum += v
	}
	st.mean = sum / float64(len(values))
	for _, v := range values {
		st.variance += (v - st.mean) * (v - st.mean)
	}
	st.variance /= float64(len(values))
	return st
}
