package fraud

import (
	"context"
	"fmt"
	"math"

	"resumeguard/internal/errors"
	"resumeguard/internal/types"
)

const (
	stuffingMinCount     = 5
	stuffingMinFrequency = 0.02
	stuffingWeight       = 0.2
)

// StuffedTerm is a watchlist term that crossed both repetition thresholds
type StuffedTerm struct {
	Skill     string  `json:"skill"`
	Count     int     `json:"count"`
	Frequency float64 `json:"frequency"`
}

// KeywordStuffingDetector flags watchlist terms repeated far beyond natural usage
// and phrases repeated back to back.
type KeywordStuffingDetector struct {
	rules *Rules
}

func (d *KeywordStuffingDetector) Name() string { return types.SignalKeywordStuffing }

func (d *KeywordStuffingDetector) Detect(ctx context.Context, in *Input) (types.Signal, error) {
	text := in.Document.Text
	tokens := tokenize(text)
	totalWords := len(tokens)

	stuffed := []StuffedTerm{}
	if totalWords > 0 {
		for _, term := range d.rules.watchlist {
			count := countSequence(tokens, term.tokens)
			frequency := float64(count) / float64(totalWords)
			if count > stuffingMinCount && frequency > stuffingMinFrequency {
				stuffed = append(stuffed, StuffedTerm{Skill: term.label, Count: count, Frequency: frequency})
			}
		}
	}

	repeated := 0
	for _, re := range d.rules.repetition {
		if err := ctx.Err(); err != nil {
			return types.Signal{}, err
		}
		m, err := re.FindStringMatch(text)
		for ; m != nil && err == nil; m, err = re.FindNextMatch(m) {
			repeated++
		}
		if err != nil {
			return types.Signal{}, errors.NewDetectionError(errors.ErrCodeDetectorTimeout,
				"repetition pattern exceeded its match budget", err).WithContext("pattern", re.String())
		}
	}

	indicators := len(stuffed) + repeated
	var issues []string
	if len(stuffed) > 0 {
		issues = append(issues, fmt.Sprintf("Potential keyword stuffing detected for %d skills", len(stuffed)))
	}
	if repeated > 0 {
		issues = append(issues, fmt.Sprintf("Suspicious repetition patterns found (%d instances)", repeated))
	}

	details := map[string]any{
		"stuffed_skills":    stuffed,
		"repeated_patterns": repeated,
		"total_words":       totalWords,
	}
	return types.NewSignal(d.Name(), indicators > 0, math.Min(float64(indicators)*stuffingWeight, 1), issues, details), nil
}
