package config

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DetectionConfig holds the tunable tables of the signal detectors.
// Numeric thresholds are fixed in the detectors; watchlists and patterns live here.
type DetectionConfig struct {
	Timeout             time.Duration `mapstructure:"timeout"`      // per-document detector deadline
	RegexTimeout        time.Duration `mapstructure:"regexTimeout"` // per-match backtracking budget
	RulesFile           string        `mapstructure:"rulesFile"`    // optional yaml/json overlay
	StuffedTerms        []string      `mapstructure:"stuffedTerms"`
	RepetitionPatterns  []string      `mapstructure:"repetitionPatterns"`
	StylePatterns       []string      `mapstructure:"stylePatterns"`
	InvisibleCodePoints []string      `mapstructure:"invisibleCodePoints"`
}

// DefaultStuffedTerms is the keyword stuffing watchlist
var DefaultStuffedTerms = []string{
	"python", "java", "javascript", "react", "angular", "node.js",
	"aws", "docker", "kubernetes", "machine learning", "ai", "sql",
}

// DefaultRepetitionPatterns catch a short phrase repeated back to back
// and a word tripled with whitespace between.
var DefaultRepetitionPatterns = []string{
	`(.{1,20})\1{3,}`,
	`\b(\w+)\s+\1\s+\1\b`,
}

// DefaultStylePatterns catch white color declarations leaking into content streams
var DefaultStylePatterns = []string{
	`(?i)(?:color|fill)[:=]\s*(?:white|#fff|#ffffff|rgb\(255,\s*255,\s*255\))`,
	`(?i)font-color[:=]\s*(?:white|#fff|#ffffff)`,
	`(?i)text-color[:=]\s*(?:white|#fff|#ffffff)`,
	`(?i)style.*color:\s*(?:white|#fff|#ffffff)`,
}

// DefaultInvisibleCodePoints are zero-width characters and bidi controls
var DefaultInvisibleCodePoints = []string{
	"U+200B-U+200D", // zero width space, non-joiner, joiner
	"U+2060",        // word joiner
	"U+FEFF",        // zero width no-break space
	"U+202A-U+202E", // bidi embeddings and overrides
	"U+2066-U+2069", // bidi isolates
}

// CodePointRange is an inclusive rune interval
type CodePointRange struct {
	Lo, Hi rune
}

// ParseCodePoints parses entries of the form "U+200B" or "U+200B-U+200D".
func ParseCodePoints(entries []string) ([]CodePointRange, error) {
	ranges := make([]CodePointRange, 0, len(entries))
	for _, entry := range entries {
		lo, hi, isRange := strings.Cut(strings.TrimSpace(entry), "-")
		start, err := parseCodePoint(lo)
		if err != nil {
			return nil, fmt.Errorf("invalid code point %q: %w", entry, err)
		}
		end := start
		if isRange {
			if end, err = parseCodePoint(hi); err != nil {
				return nil, fmt.Errorf("invalid code point %q: %w", entry, err)
			}
		}
		if end < start {
			return nil, fmt.Errorf("invalid code point range %q: end before start", entry)
		}
		ranges = append(ranges, CodePointRange{Lo: start, Hi: end})
	}
	return ranges, nil
}

func parseCodePoint(s string) (rune, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "U+"), "u+")
	n, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, err
	}
	if n > 0x10FFFF {
		return 0, fmt.Errorf("out of unicode range")
	}
	return rune(n), nil
}

// Validate checks the detection configuration for structural problems.
// Pattern syntax is checked when the rules are compiled.
func (d DetectionConfig) Validate() error {
	if d.Timeout <= 0 {
		return fmt.Errorf("detection timeout must be positive")
	}
	if d.RegexTimeout <= 0 {
		return fmt.Errorf("detection regexTimeout must be positive")
	}
	if slices.ContainsFunc(d.StuffedTerms, func(t string) bool { return strings.TrimSpace(t) == "" }) {
		return fmt.Errorf("stuffedTerms must not contain empty terms")
	}
	if _, err := ParseCodePoints(d.InvisibleCodePoints); err != nil {
		return err
	}
	return nil
}

// Merge returns d with every non-empty table of overlay replacing its own.
func (d DetectionConfig) Merge(overlay DetectionConfig) DetectionConfig {
	if len(overlay.StuffedTerms) > 0 {
		d.StuffedTerms = slices.Clone(overlay.StuffedTerms)
	}
	if len(overlay.RepetitionPatterns) > 0 {
		d.RepetitionPatterns = slices.Clone(overlay.RepetitionPatterns)
	}
	if len(overlay.StylePatterns) > 0 {
		d.StylePatterns = slices.Clone(overlay.StylePatterns)
	}
	if len(overlay.InvisibleCodePoints) > 0 {
		d.InvisibleCodePoints = slices.Clone(overlay.InvisibleCodePoints)
	}
	return d
}

// LoadRulesFile reads a yaml or json rules overlay.
// The file holds the same keys as the detection section: stuffedTerms,
// repetitionPatterns, stylePatterns, invisibleCodePoints.
func LoadRulesFile(path string) (DetectionConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return DetectionConfig{}, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}

	var overlay DetectionConfig
	if err := v.Unmarshal(&overlay); err != nil {
		return DetectionConfig{}, fmt.Errorf("failed to parse rules file %s: %w", path, err)
	}
	return overlay, nil
}
