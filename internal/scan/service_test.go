package scan

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"resumeguard/internal/config"
	"resumeguard/internal/fraud"
	"resumeguard/internal/types"
)

func testConfig() *config.Config {
	return &config.Config{
		Detection: config.DetectionConfig{
			Timeout:             5 * time.Second,
			RegexTimeout:        time.Second,
			StuffedTerms:        config.DefaultStuffedTerms,
			RepetitionPatterns:  config.DefaultRepetitionPatterns,
			StylePatterns:       config.DefaultStylePatterns,
			InvisibleCodePoints: config.DefaultInvisibleCodePoints,
		},
		Extraction: config.ExtractionConfig{MaxPages: 10, MaxGlyphs: 10000, MaxOperators: 10000},
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	s, err := NewService(testConfig(), nil, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// docx builds a word document whose body is the given paragraphs of runs
func docx(t *testing.T, paragraphs ...string) []byte {
	t.Helper()

	body := `<?xml version="1.0" encoding="UTF-8"?><w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		strings.Join(paragraphs, "") + `</w:body></w:document>`

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.Write([]byte(body)); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func para(text, rPr string) string {
	if rPr != "" {
		rPr = "<w:rPr>" + rPr + "</w:rPr>"
	}
	return `<w:p><w:r>` + rPr + `<w:t xml:space="preserve">` + text + `</w:t></w:r></w:p>`
}

func TestScanDetectsWhiteRunInDOCX(t *testing.T) {
	s := newTestService(t)
	data := docx(t,
		para("Senior backend engineer with eight years of experience building payment services.", ""),
		para("python kubernetes docker aws react", `<w:color w:val="FFFFFF"/>`),
	)

	report, err := s.Scan(context.Background(), data, types.DocumentTypeDOCX, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	white := report.DetailedAnalysis.WhiteText
	if !white.Detected {
		t.Fatalf("white_text not detected: %+v", white)
	}
	if white.RiskScore <= 0 {
		t.Errorf("white_text score = %v, want > 0", white.RiskScore)
	}
	if len(report.DetectedIssues) == 0 || report.DetectedIssues[0] != white.Issues[0] {
		t.Errorf("detected_issues = %v, want white text issue first", report.DetectedIssues)
	}
	if stream := report.DetailedAnalysis.PDFStreamAnalysis; stream.Detected || stream.RiskScore != 0 {
		t.Errorf("pdf_stream_analysis on a DOCX = %+v, want neutral", stream)
	}
}

func TestScanCorruptInputIsLowRisk(t *testing.T) {
	s := newTestService(t)

	tests := []struct {
		name    string
		data    []byte
		docType types.DocumentType
	}{
		{"garbage pdf", []byte("not a pdf at all"), types.DocumentTypePDF},
		{"garbage docx", []byte("PK\x03\x04 truncated"), types.DocumentTypeDOCX},
		{"empty", nil, types.DocumentTypePDF},
		{"unsupported type", []byte("hello"), types.DocumentType("rtf")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := s.Scan(context.Background(), tt.data, tt.docType, nil)
			if err != nil {
				t.Fatalf("Scan: %v", err)
			}
			if report.OverallRiskScore != 0 || report.RiskLevel != types.RiskLevelLow {
				t.Errorf("report = %v/%v, want 0/low", report.OverallRiskScore, report.RiskLevel)
			}
			if len(report.DetectedIssues) != 0 {
				t.Errorf("detected_issues = %v, want none", report.DetectedIssues)
			}
		})
	}

	if got := s.Stats()["scans_total"]; got != int64(len(tests)) {
		t.Errorf("scans_total = %v, want %d", got, len(tests))
	}
}

func TestScanCancelledContext(t *testing.T) {
	s := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Scan(ctx, docx(t, para("hello", "")), types.DocumentTypeDOCX, nil); err == nil {
		t.Error("expected an error for a cancelled context")
	}
}

func TestScanWithProfile(t *testing.T) {
	s := newTestService(t)
	profile := &types.Profile{
		Skills:          []string{"go", "rust", "python", "java", "c++", "sql", "aws", "gcp", "azure", "docker", "k8s", "react", "vue", "angular", "swift", "kotlin", "scala", "ruby", "php", "perl", "haskell", "elixir"},
		YearsExperience: 1,
	}

	report, err := s.Scan(context.Background(), docx(t, para("Engineer.", "")), types.DocumentTypeDOCX, profile)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if !report.DetailedAnalysis.ContentAuthenticity.Detected {
		t.Errorf("content_authenticity not detected for an implausible profile: %+v",
			report.DetailedAnalysis.ContentAuthenticity)
	}
}

// stuffedText repeats term among distinct filler words
func stuffedText(term string, times int) string {
	var sb strings.Builder
	for i := range times {
		fmt.Fprintf(&sb, "%s filler%d word%d ", term, i, i)
	}
	return sb.String()
}

func stuffedSkills(t *testing.T, report types.FraudReport) []string {
	t.Helper()
	raw := report.DetailedAnalysis.KeywordStuffing.Details["stuffed_skills"]
	terms, ok := raw.([]fraud.StuffedTerm)
	if !ok {
		t.Fatalf("stuffed_skills has type %T", raw)
	}
	var skills []string
	for _, term := range terms {
		skills = append(skills, term.Skill)
	}
	return skills
}

func TestReloadRules(t *testing.T) {
	s := newTestService(t)
	data := docx(t, para(stuffedText("golang", 10), ""))

	before, _ := s.Scan(context.Background(), data, types.DocumentTypeDOCX, nil)
	if got := stuffedSkills(t, before); len(got) != 0 {
		t.Fatalf("stuffed skills before reload = %v, want none", got)
	}

	detection := testConfig().Detection
	detection.StuffedTerms = []string{"golang"}
	if err := s.ReloadRules(detection); err != nil {
		t.Fatalf("ReloadRules: %v", err)
	}

	after, _ := s.Scan(context.Background(), data, types.DocumentTypeDOCX, nil)
	if got := stuffedSkills(t, after); len(got) != 1 || got[0] != "golang" {
		t.Errorf("stuffed skills after reload = %v, want [golang]", got)
	}
}

func TestReloadRulesKeepsPreviousOnError(t *testing.T) {
	s := newTestService(t)
	previous := s.analyzer.Load()

	detection := testConfig().Detection
	detection.RepetitionPatterns = []string{`(unclosed`}
	if err := s.ReloadRules(detection); err == nil {
		t.Fatal("expected an error for an invalid pattern")
	}
	if s.analyzer.Load() != previous {
		t.Error("analyzer was replaced despite a failed reload")
	}
}

func TestWatchRulesReloadsOnChange(t *testing.T) {
	s := newTestService(t)
	rulesFile := filepath.Join(t.TempDir(), "rules.yaml")
	if err := os.WriteFile(rulesFile, []byte("stuffedTerms: [python]\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := s.WatchRules(rulesFile, 20*time.Millisecond); err != nil {
		t.Fatalf("WatchRules: %v", err)
	}
	previous := s.analyzer.Load()

	if err := os.WriteFile(rulesFile, []byte("stuffedTerms: [golang]\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(rulesFile, future, future); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for s.analyzer.Load() == previous {
		if time.Now().After(deadline) {
			t.Fatal("rules were not reloaded after the file changed")
		}
		time.Sleep(10 * time.Millisecond)
	}

	report, _ := s.Scan(context.Background(), docx(t, para(stuffedText("golang", 10), "")), types.DocumentTypeDOCX, nil)
	if got := stuffedSkills(t, report); len(got) != 1 || got[0] != "golang" {
		t.Errorf("stuffed skills after file reload = %v, want [golang]", got)
	}
	if watching := s.Stats()["rules_watching"]; watching != true {
		t.Errorf("rules_watching = %v, want true", watching)
	}
}

func TestWatchRulesWithoutFile(t *testing.T) {
	s := newTestService(t)
	if err := s.WatchRules("", 0); err != nil {
		t.Fatalf("WatchRules: %v", err)
	}
	if s.watcher != nil {
		t.Error("watcher started without a rules file")
	}
}
