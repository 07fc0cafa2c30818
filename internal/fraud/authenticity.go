package fraud

import (
	"context"
	"regexp"
	"strings"

	"resumeguard/internal/types"
)

const (
	juniorYears           = 2.0
	juniorMaxSkills       = 20
	minReadability        = 30.0
	maxPlausibleYears     = 50.0
	excessSkillsBonus     = 0.3
	poorReadabilityBonus  = 0.2
	missingContactBonus   = 0.1
	implausibleYearsBonus = 0.4
)

// Contact details found in the resume text count the same as profile fields
var (
	emailPattern = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(\+\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]?\d{3}[-.\s]?\d{4}`)
)

// ContentAuthenticityDetector checks the resume content for claims and prose
// that do not read like a real person's history.
type ContentAuthenticityDetector struct{}

func (d *ContentAuthenticityDetector) Name() string { return types.SignalContentAuthenticity }

func (d *ContentAuthenticityDetector) Detect(_ context.Context, in *Input) (types.Signal, error) {
	text := in.Document.Text
	hasText := strings.TrimSpace(text) != ""
	readability, hasWords := fleschReadingEase(text)

	score := 0.0
	var issues []string
	details := map[string]any{
		"readability_score":         nil,
		"skill_count":               0,
		"experience_years":          0.0,
		"skill_to_experience_ratio": 0.0,
	}
	if hasWords {
		details["readability_score"] = readability
	}

	if p := in.Profile; p != nil {
		skills := len(p.Skills)
		details["skill_count"] = skills
		details["experience_years"] = p.YearsExperience
		details["skill_to_experience_ratio"] = float64(skills) / max(p.YearsExperience, 1)

		if p.YearsExperience < juniorYears && skills > juniorMaxSkills {
			score += excessSkillsBonus
			issues = append(issues, "Excessive skills for experience level")
		}
	}

	if hasWords && readability < minReadability {
		score += poorReadabilityBonus
		issues = append(issues, "Poor text readability")
	}

	hasEmail := emailPattern.MatchString(text)
	hasPhone := phonePattern.MatchString(text)
	if p := in.Profile; p != nil {
		hasEmail = hasEmail || strings.TrimSpace(p.Email) != ""
		hasPhone = hasPhone || strings.TrimSpace(p.Phone) != ""
	}
	details["has_email"] = hasEmail
	details["has_phone"] = hasPhone

	if hasText && !hasEmail && !hasPhone {
		score += missingContactBonus
		issues = append(issues, "Missing basic contact information")
	}
	if p := in.Profile; p != nil && p.YearsExperience > maxPlausibleYears {
		score += implausibleYearsBonus
		issues = append(issues, "Unrealistic experience duration")
	}

	details["raw_score"] = score
	return types.NewSignal(d.Name(), len(issues) > 0, score, issues, details), nil
}
