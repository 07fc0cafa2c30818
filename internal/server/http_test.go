package server

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"resumeguard/internal/config"
	"resumeguard/internal/scan"
	"resumeguard/internal/types"
)

func testAppConfig() *config.Config {
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
		App:        config.AppConfig{MaxFileSize: 1 << 20},
	}
}

// newTestServer wires a server around a real scan service without observability
func newTestServer(t *testing.T, mutate func(*ServerConfig)) *Server {
	t.Helper()

	appCfg := testAppConfig()
	cfg := NewServerConfig(appCfg, "test")
	if mutate != nil {
		mutate(&cfg)
	}

	srv := NewServer(appCfg, cfg, nil)
	service, err := scan.NewService(appCfg, nil, nil)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	srv.Service = service

	t.Cleanup(func() {
		_ = service.Close()
		if srv.RateLimiter != nil {
			srv.RateLimiter.Close()
		}
	})
	return srv
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
	if _, err := io.WriteString(f, body); err != nil {
		t.Fatal(err)
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// scanRequestFor builds a multipart POST /scan request
func scanRequestFor(t *testing.T, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		part, err := mw.CreateFormFile("document", filename)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	for name, value := range fields {
		if err := mw.WriteField(name, value); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/scan", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode error response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

func TestScanEndpointReturnsReport(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := serve(srv, scanRequestFor(t, "resume.docx", whiteTextDOCX(t), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"overall_risk_score", "risk_level", "detected_issues", "detailed_analysis"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("response missing %q", key)
		}
	}

	var report types.FraudReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if !report.DetailedAnalysis.WhiteText.Detected {
		t.Errorf("white_text not detected: %+v", report.DetailedAnalysis.WhiteText)
	}
	if report.OverallRiskScore <= 0 {
		t.Errorf("overall_risk_score = %v, want > 0", report.OverallRiskScore)
	}
}

func TestScanEndpointRequestValidation(t *testing.T) {
	srv := newTestServer(t, nil)
	doc := whiteTextDOCX(t)

	tests := []struct {
		name     string
		req      func() *http.Request
		wantCode int
		wantErr  string
	}{
		{
			name:     "method not allowed",
			req:      func() *http.Request { return httptest.NewRequest(http.MethodGet, "/scan", nil) },
			wantCode: http.StatusMethodNotAllowed,
		},
		{
			name: "not multipart",
			req: func() *http.Request {
				req := httptest.NewRequest(http.MethodPost, "/scan", strings.NewReader(`{"document":"x"}`))
				req.Header.Set("Content-Type", "application/json")
				return req
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "INVALID_REQUEST",
		},
		{
			name:     "missing document",
			req:      func() *http.Request { return scanRequestFor(t, "", nil, map[string]string{"type": "pdf"}) },
			wantCode: http.StatusBadRequest,
			wantErr:  "INVALID_REQUEST",
		},
		{
			name:     "unknown type field",
			req:      func() *http.Request { return scanRequestFor(t, "resume.docx", doc, map[string]string{"type": "rtf"}) },
			wantCode: http.StatusUnsupportedMediaType,
			wantErr:  "UNSUPPORTED_DOCUMENT",
		},
		{
			name:     "undetectable type",
			req:      func() *http.Request { return scanRequestFor(t, "resume.txt", []byte("plain text"), nil) },
			wantCode: http.StatusUnsupportedMediaType,
			wantErr:  "UNSUPPORTED_DOCUMENT",
		},
		{
			name: "malformed profile",
			req: func() *http.Request {
				return scanRequestFor(t, "resume.docx", doc, map[string]string{"profile": "{not json"})
			},
			wantCode: http.StatusBadRequest,
			wantErr:  "INVALID_PROFILE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(srv, tt.req())
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantErr != "" {
				if got := decodeError(t, rec).Code; got != tt.wantErr {
					t.Errorf("error code = %q, want %q", got, tt.wantErr)
				}
			}
		})
	}
}

func TestScanEndpointTypeAndProfileFields(t *testing.T) {
	srv := newTestServer(t, nil)
	profile := `{"skills":["go","rust","python","java","c++","sql","aws","gcp","azure","docker","k8s",` +
		`"react","vue","angular","swift","kotlin","scala","ruby","php","perl","haskell","elixir"],"yearsExperience":1}`

	// Extension is wrong on purpose; the explicit type wins
	req := scanRequestFor(t, "upload.bin", whiteTextDOCX(t), map[string]string{"type": "DOCX", "profile": profile})
	rec := serve(srv, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}

	var report types.FraudReport
	if err := json.Unmarshal(rec.Body.Bytes(), &report); err != nil {
		t.Fatal(err)
	}
	if !report.DetailedAnalysis.ContentAuthenticity.Detected {
		t.Errorf("content_authenticity not detected for implausible profile: %+v",
			report.DetailedAnalysis.ContentAuthenticity)
	}
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t, func(cfg *ServerConfig) {
		cfg.APIKeys = []string{"secret-key-123456", ""}
	})

	tests := []struct {
		name     string
		header   string
		value    string
		wantCode int
		wantErr  string
	}{
		{"missing key", "", "", http.StatusUnauthorized, "MISSING_API_KEY"},
		{"invalid key", "X-API-Key", "wrong", http.StatusUnauthorized, "INVALID_API_KEY"},
		{"valid X-API-Key", "X-API-Key", "secret-key-123456", http.StatusOK, ""},
		{"valid bearer token", "Authorization", "Bearer secret-key-123456", http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := scanRequestFor(t, "resume.docx", whiteTextDOCX(t), nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}

			rec := serve(srv, req)
			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantCode, rec.Body.String())
			}
			if tt.wantErr != "" {
				if got := decodeError(t, rec).Code; got != tt.wantErr {
					t.Errorf("error code = %q, want %q", got, tt.wantErr)
				}
			}
		})
	}

	if len(srv.APIKeys) != 1 {
		t.Errorf("empty API keys should be ignored, got %d keys", len(srv.APIKeys))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	srv := newTestServer(t, func(cfg *ServerConfig) {
		cfg.RateLimit = &config.RateLimitConfig{
			Enabled:        true,
			RequestsPerMin: 1,
			BurstCapacity:  1,
			ByIP:           true,
			ByAPIKey:       true,
		}
	})
	doc := whiteTextDOCX(t)

	send := func(remoteAddr, apiKey string) int {
		req := scanRequestFor(t, "resume.docx", doc, nil)
		req.RemoteAddr = remoteAddr
		if apiKey != "" {
			req.Header.Set("X-API-Key", apiKey)
		}
		return serve(srv, req).Code
	}

	if code := send("192.0.2.1:1234", ""); code != http.StatusOK {
		t.Fatalf("first request status = %d", code)
	}
	if code := send("192.0.2.1:5678", ""); code != http.StatusTooManyRequests {
		t.Errorf("second request from same IP status = %d, want 429", code)
	}
	if code := send("192.0.2.2:1234", ""); code != http.StatusOK {
		t.Errorf("request from another IP status = %d, want 200", code)
	}

	// API keys get their own bucket, independent of IP
	if code := send("192.0.2.1:1234", "key-a"); code != http.StatusOK {
		t.Errorf("first request with key-a status = %d, want 200", code)
	}
	if code := send("192.0.2.3:1234", "key-a"); code != http.StatusTooManyRequests {
		t.Errorf("second request with key-a status = %d, want 429", code)
	}

	stats := srv.RateLimiter.GetStats()
	if stats["rejected_requests"] != int64(2) {
		t.Errorf("rejected_requests = %v, want 2", stats["rejected_requests"])
	}
	if stats["active_limiters"] != 3 {
		t.Errorf("active_limiters = %v, want 3", stats["active_limiters"])
	}
}

func TestRequestSizeLimit(t *testing.T) {
	srv := newTestServer(t, func(cfg *ServerConfig) {
		cfg.MaxRequestSize = 512
	})
	big := bytes.Repeat([]byte("A"), 4096)

	t.Run("declared length", func(t *testing.T) {
		rec := serve(srv, scanRequestFor(t, "resume.pdf", big, nil))
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, want 413", rec.Code)
		}
		if got := decodeError(t, rec).Code; got != "FILE_TOO_LARGE" {
			t.Errorf("error code = %q", got)
		}
	})

	t.Run("unknown length", func(t *testing.T) {
		req := scanRequestFor(t, "resume.pdf", big, nil)
		req.ContentLength = -1
		rec := serve(srv, req)
		if rec.Code != http.StatusRequestEntityTooLarge {
			t.Fatalf("status = %d, want 413 (body %s)", rec.Code, rec.Body.String())
		}
	})
}

func TestHealthAndStats(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := serve(srv, scanRequestFor(t, "resume.docx", whiteTextDOCX(t), nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scan status = %d", rec.Code)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
	var health map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health["status"] != "healthy" || health["version"] != "test" {
		t.Errorf("health = %v", health)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodGet, "/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("stats status = %d", rec.Code)
	}
	var stats struct {
		Scanning struct {
			ScansTotal int `json:"scans_total"`
		} `json:"scanning"`
		RateLimiting map[string]any `json:"rate_limiting"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatal(err)
	}
	if stats.Scanning.ScansTotal != 1 {
		t.Errorf("scans_total = %d, want 1", stats.Scanning.ScansTotal)
	}
	if stats.RateLimiting["enabled"] != false {
		t.Errorf("rate_limiting = %v, want disabled", stats.RateLimiting)
	}

	rec = serve(srv, httptest.NewRequest(http.MethodPost, "/health", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("POST /health status = %d, want 405", rec.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr", "203.0.113.9:4444", nil, "203.0.113.9"},
		{"forwarded for", "10.0.0.1:1", map[string]string{"X-Forwarded-For": "garbage, 198.51.100.7, 10.0.0.2"}, "198.51.100.7"},
		{"real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "198.51.100.8"}, "198.51.100.8"},
		{"invalid real ip", "10.0.0.1:1", map[string]string{"X-Real-IP": "nope"}, "10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			if got := getClientIP(req); got != tt.want {
				t.Errorf("getClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMaskAPIKey(t *testing.T) {
	if got := maskAPIKey("short"); got != "****" {
		t.Errorf("maskAPIKey(short) = %q", got)
	}
	if got := maskAPIKey("abcdefghijkl"); got != "abcdefgh****" {
		t.Errorf("maskAPIKey(long) = %q", got)
	}
}

func TestWriteServerInfo(t *testing.T) {
	srv := newTestServer(t, func(cfg *ServerConfig) {
		cfg.APIKeys = []string{"key-1"}
		cfg.RateLimit = &config.RateLimitConfig{Enabled: true, RequestsPerMin: 30, BurstCapacity: 5, ByIP: true}
	})
	srv.AppConfig.Detection.RulesFile = "rules.yaml"

	var out bytes.Buffer
	srv.writeServerInfo(&out)

	for _, want := range []string{"POST", "/scan", "1 keys", "30/min, burst 5, by ip", "rules.yaml (reloaded on change)"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("server info missing %q:\n%s", want, out.String())
		}
	}
	if strings.Contains(out.String(), "WARNING") {
		t.Errorf("unexpected warning:\n%s", out.String())
	}

	open := newTestServer(t, nil)
	open.MaxRequestSize = 0
	out.Reset()
	open.writeServerInfo(&out)
	if got := strings.Count(out.String(), "WARNING"); got != 2 {
		t.Errorf("got %d warnings, want 2:\n%s", got, out.String())
	}
}

func TestStartStopsOnContextCancel(t *testing.T) {
	srv := newTestServer(t, func(cfg *ServerConfig) {
		cfg.Host = "127.0.0.1"
		cfg.Port = "0"
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start() = %v, want nil after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestStartFailsOnBusyPort(t *testing.T) {
	busy, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = busy.Close() }()

	_, port, _ := net.SplitHostPort(busy.Addr().String())
	srv := newTestServer(t, func(cfg *ServerConfig) {
		cfg.Host = "127.0.0.1"
		cfg.Port = port
	})

	if err := srv.Start(context.Background()); err == nil {
		t.Fatal("Start() on a busy port returned nil")
	}
}
