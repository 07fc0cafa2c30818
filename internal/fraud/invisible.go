package fraud

import (
	"context"
	"fmt"
	"math"
	"unicode"

	"resumeguard/internal/types"
)

const (
	spaceRunLength  = 5
	invisibleWeight = 0.1
)

// InvisibleCharacterDetector counts zero-width and bidi control characters
// and long runs of spaces in the plain text.
type InvisibleCharacterDetector struct {
	rules *Rules
}

func (d *InvisibleCharacterDetector) Name() string { return types.SignalInvisibleCharacters }

func (d *InvisibleCharacterDetector) Detect(ctx context.Context, in *Input) (types.Signal, error) {
	invisible, spaceRuns, unusual := 0, 0, 0
	run := 0

	i := 0
	for _, r := range in.Document.Text {
		if i++; i%(checkEvery*32) == 0 {
			if err := ctx.Err(); err != nil {
				return types.Signal{}, err
			}
		}

		if r == ' ' {
			run++
			continue
		}
		if run >= spaceRunLength {
			spaceRuns++
		}
		run = 0

		if unicode.Is(d.rules.invisible, r) {
			invisible++
		}
		if r > unicode.MaxASCII && !unicode.IsSpace(r) {
			unusual++
		}
	}
	if run >= spaceRunLength {
		spaceRuns++
	}

	indicators := invisible + spaceRuns
	var issues []string
	if invisible > 0 {
		issues = append(issues, fmt.Sprintf("Invisible characters detected (%d instances)", invisible))
	}
	if spaceRuns > 0 {
		issues = append(issues, fmt.Sprintf("Excessive whitespace patterns (%d instances)", spaceRuns))
	}

	details := map[string]any{
		"invisible_chars":  invisible,
		"excessive_spaces": spaceRuns,
		"unusual_chars":    unusual,
	}
	return types.NewSignal(d.Name(), indicators > 0, math.Min(float64(indicators)*invisibleWeight, 1), issues, details), nil
}
