package fraud

import (
	"fmt"
	"regexp"
	"time"
	"unicode"

	"resumeguard/internal/config"
	"resumeguard/internal/errors"

	"github.com/dlclark/regexp2"
	"golang.org/x/text/unicode/rangetable"
)

// Rules is the compiled, immutable form of the detection tables.
// One Rules value is shared by every detector and every analysis.
type Rules struct {
	watchlist  []watchTerm
	repetition []*regexp2.Regexp
	style      []*regexp.Regexp
	invisible  *unicode.RangeTable
	timeout    time.Duration
}

// watchTerm is a watchlist entry split into the tokens it must match in sequence
type watchTerm struct {
	label  string
	tokens []string
}

// NewRules compiles the detection tables of cfg.
func NewRules(cfg config.DetectionConfig) (*Rules, error) {
	rules := &Rules{timeout: cfg.Timeout}

	for _, term := range cfg.StuffedTerms {
		tokens := tokenize(term)
		if len(tokens) == 0 {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidRules,
				fmt.Sprintf("watchlist term %q has no word characters", term), nil)
		}
		rules.watchlist = append(rules.watchlist, watchTerm{label: term, tokens: tokens})
	}

	for _, pattern := range cfg.RepetitionPatterns {
		re, err := regexp2.Compile(pattern, regexp2.IgnoreCase)
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidRules,
				fmt.Sprintf("invalid repetition pattern %q", pattern), err)
		}
		if cfg.RegexTimeout > 0 {
			re.MatchTimeout = cfg.RegexTimeout
		}
		rules.repetition = append(rules.repetition, re)
	}

	for _, pattern := range cfg.StylePatterns {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, errors.NewConfigError(errors.ErrCodeInvalidRules,
				fmt.Sprintf("invalid style pattern %q", pattern), err)
		}
		rules.style = append(rules.style, re)
	}

	ranges, err := config.ParseCodePoints(cfg.InvisibleCodePoints)
	if err != nil {
		return nil, errors.NewConfigError(errors.ErrCodeInvalidRules, "invalid invisible code points", err)
	}
	var runes []rune
	for _, r := range ranges {
		for c := r.Lo; c <= r.Hi; c++ {
			runes = append(runes, c)
		}
	}
	rules.invisible = rangetable.New(runes...)

	return rules, nil
}

// DefaultRules compiles the built-in tables. It panics only if they are broken.
func DefaultRules() *Rules {
	rules, err := NewRules(config.DetectionConfig{
		Timeout:             10 * time.Second,
		RegexTimeout:        2 * time.Second,
		StuffedTerms:        config.DefaultStuffedTerms,
		RepetitionPatterns:  config.DefaultRepetitionPatterns,
		StylePatterns:       config.DefaultStylePatterns,
		InvisibleCodePoints: config.DefaultInvisibleCodePoints,
	})
	if err != nil {
		panic(err)
	}
	return rules
}

// Timeout is the per-document analysis deadline.
func (r *Rules) Timeout() time.Duration {
	return r.timeout
}
