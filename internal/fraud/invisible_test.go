package fraud

import (
	"strings"
	"testing"
)

func TestInvisibleCharacterDetector(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		wantDetected  bool
		wantScore     float64
		wantInvisible int
		wantRuns      int
		wantUnusual   int
		wantIssues    int
	}{
		{
			name: "plain ascii",
			text: "Senior engineer with ten years of experience.",
		},
		{
			name:          "zero width characters",
			text:          "Hello\u200bWorld\u200d and\ufeff more",
			wantDetected:  true,
			wantScore:     0.3,
			wantInvisible: 3,
			wantUnusual:   3,
			wantIssues:    1,
		},
		{
			name:          "bidi override",
			text:          "name\u202eliame",
			wantDetected:  true,
			wantScore:     0.1,
			wantInvisible: 1,
			wantUnusual:   1,
			wantIssues:    1,
		},
		{
			name: "four spaces are fine",
			text: "a    b",
		},
		{
			name:         "space runs",
			text:         "a     b" + strings.Repeat(" ", 12) + "c" + strings.Repeat(" ", 5),
			wantDetected: true,
			wantScore:    0.3,
			wantRuns:     3,
			wantIssues:   1,
		},
		{
			name:        "accented letters only count as unusual",
			text:        "Café résumé",
			wantUnusual: 3,
		},
		{
			name:          "saturates",
			text:          strings.Repeat("x\u200b", 15),
			wantDetected:  true,
			wantScore:     1,
			wantInvisible: 15,
			wantUnusual:   15,
			wantIssues:    1,
		},
		{
			name:          "both kinds",
			text:          "skills:\u2060python      java",
			wantDetected:  true,
			wantScore:     0.2,
			wantInvisible: 1,
			wantRuns:      1,
			wantUnusual:   1,
			wantIssues:    2,
		},
	}

	d := &InvisibleCharacterDetector{rules: DefaultRules()}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := detect(t, d, &Input{Document: textDoc(tt.text)})

			if sig.Detected != tt.wantDetected {
				t.Errorf("Detected = %v, want %v", sig.Detected, tt.wantDetected)
			}
			if !approx(round2(sig.RiskScore), tt.wantScore) {
				t.Errorf("RiskScore = %v, want %v", sig.RiskScore, tt.wantScore)
			}
			if got := sig.Details["invisible_chars"]; got != tt.wantInvisible {
				t.Errorf("invisible_chars = %v, want %d", got, tt.wantInvisible)
			}
			if got := sig.Details["excessive_spaces"]; got != tt.wantRuns {
				t.Errorf("excessive_spaces = %v, want %d", got, tt.wantRuns)
			}
			if got := sig.Details["unusual_chars"]; got != tt.wantUnusual {
				t.Errorf("unusual_chars = %v, want %d", got, tt.wantUnusual)
			}
			if len(sig.Issues) != tt.wantIssues {
				t.Errorf("Issues = %v, want %d", sig.Issues, tt.wantIssues)
			}
		})
	}
}
