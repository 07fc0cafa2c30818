package fraud

import (
	"context"
	"fmt"

	"resumeguard/internal/types"
)

// Input is the read-only snapshot every detector evaluates
type Input struct {
	Document *types.Document
	// Profile is structured resume data from an upstream parser, nil when unavailable
	Profile *types.Profile
}

// Detector computes one Signal from an Input.
// Implementations must not mutate the input; errors become failed signals.
type Detector interface {
	Name() string
	Detect(ctx context.Context, in *Input) (types.Signal, error)
}

// NewDetectors returns the six detectors in reporting order.
func NewDetectors(rules *Rules) []Detector {
	return []Detector{
		&WhiteTextDetector{},
		&KeywordStuffingDetector{rules: rules},
		&InvisibleCharacterDetector{rules: rules},
		&FormattingAnomalyDetector{},
		&ContentAuthenticityDetector{},
		&ContentStreamDetector{rules: rules},
	}
}

// checkEvery is how many loop iterations run between context checks
const checkEvery = 2048

func percent(ratio float64) string {
	return fmt.Sprintf("%.2f%%", ratio*100)
}
