package cli

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"resumeguard/internal/config"
	"resumeguard/internal/errors"
	"resumeguard/internal/types"
)

func TestResolveDocumentType(t *testing.T) {
	tests := []struct {
		name     string
		explicit string
		filename string
		data     []byte
		want     types.DocumentType
		wantErr  bool
	}{
		{"explicit wins over content", "docx", "resume.pdf", []byte("%PDF-1.7"), types.DocumentTypeDOCX, false},
		{"explicit is case insensitive", "PDF", "resume", nil, types.DocumentTypePDF, false},
		{"explicit unknown type", "odt", "resume.odt", nil, "", true},
		{"sniffed pdf", "", "upload", []byte("%PDF-1.4\n"), types.DocumentTypePDF, false},
		{"sniffed docx", "", "upload", []byte("PK\x03\x04rest"), types.DocumentTypeDOCX, false},
		{"extension fallback", "", "resume.docx", []byte("garbage"), types.DocumentTypeDOCX, false},
		{"undetectable", "", "resume.txt", []byte("plain text"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := resolveDocumentType(tt.explicit, tt.filename, tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("resolveDocumentType() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("resolveDocumentType() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseFailOn(t *testing.T) {
	for _, level := range []string{"", "low", "medium", "high"} {
		if _, err := parseFailOn(level); err != nil {
			t.Errorf("parseFailOn(%q) unexpected error: %v", level, err)
		}
	}
	if _, err := parseFailOn("critical"); err == nil {
		t.Error("parseFailOn(critical) expected error")
	}

	if !(riskRank(types.RiskLevelHigh) > riskRank(types.RiskLevelMedium) &&
		riskRank(types.RiskLevelMedium) > riskRank(types.RiskLevelLow)) {
		t.Error("riskRank does not order low < medium < high")
	}
}

func TestScanHelpDescribesFormattingDetector(t *testing.T) {
	want := "suspicious_formatting: unreadably small or erratically sized fonts"
	if !strings.Contains(scanCmd.Long, want) {
		t.Errorf("scan help missing %q:\n%s", want, scanCmd.Long)
	}
	if strings.Contains(scanCmd.Long, "suspicious_formatting: invisible") {
		t.Error("scan help still attributes invisible characters to suspicious_formatting")
	}
}

func TestScanCommandWritesJSONReport(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "resume.docx")
	output := filepath.Join(dir, "out", "report.json")

	if err := os.WriteFile(input, whiteTextDOCX(t), 0600); err != nil {
		t.Fatal(err)
	}

	cfg := &config.Config{
		Detection: config.DetectionConfig{
			Timeout:             5 * time.Second,
			RegexTimeout:        time.Second,
			StuffedTerms:        config.DefaultStuffedTerms,
			RepetitionPatterns:  config.DefaultRepetitionPatterns,
			StylePatterns:       config.DefaultStylePatterns,
			InvisibleCodePoints: config.DefaultInvisibleCodePoints,
		},
		Extraction: config.ExtractionConfig{MaxPages: 10, MaxGlyphs: 10000, MaxOperators: 10000},
		App: config.AppConfig{
			MaxFileSize:      1 << 20,
			DefaultFormat:    "json",
			SupportedFormats: []string{"json", "text", "markdown"},
		},
	}

	rootCmd.SetArgs([]string{"scan", input, "-o", output})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		scanOptions.OutputFormat = ""
		scanOutputFile = ""
	})

	if err := Execute(context.Background(), cfg, errors.Discard()); err != nil {
		t.Fatalf("scan command failed: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}

	var report types.FraudReport
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("report is not JSON: %v\n%s", err, data)
	}
	if !report.DetailedAnalysis.WhiteText.Detected {
		t.Errorf("white text not detected: %+v", report.DetailedAnalysis.WhiteText)
	}
	if report.RiskLevel == "" {
		t.Error("risk level missing from report")
	}
}

func whiteTextDOCX(t *testing.T) []byte {
	t.Helper()

	body := `<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		`<w:p><w:r><w:t>Senior backend engineer with eight years of experience.</w:t></w:r></w:p>` +
		`<w:p><w:r><w:rPr><w:color w:val="FFFFFF"/></w:rPr><w:t>python kubernetes docker aws react</w:t></w:r></w:p>` +
		`</w:body></w:document>`

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
