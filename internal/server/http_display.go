package server

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"resumeguard/internal/utils"
)

type scanEndpoint struct {
	method, path, summary string
}

var scanEndpoints = []scanEndpoint{
	{"GET", "/health", "Health check"},
	{"GET", "/stats", "Scan, rules and rate limit statistics"},
	{"POST", "/scan", "Scan a resume (multipart: document, type, profile)"},
}

// writeServerInfo prints the endpoint list and the effective limits to w
func (s *Server) writeServerInfo(w io.Writer) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(tw, "Available endpoints:")
	for _, ep := range scanEndpoints {
		_, _ = fmt.Fprintf(tw, "  %s\t%s\t%s\n", ep.method, ep.path, ep.summary)
	}
	_ = tw.Flush()

	var warnings []string
	setting := func(name, value string) {
		_, _ = fmt.Fprintf(tw, "%s:\t%s\n", name, value)
	}

	if len(s.APIKeys) > 0 {
		setting("API authentication", fmt.Sprintf("%d keys (X-API-Key or Bearer on /scan)", len(s.APIKeys)))
	} else {
		setting("API authentication", "disabled")
		warnings = append(warnings, "/scan is publicly accessible")
	}

	if s.MaxRequestSize > 0 {
		setting("Request size limit", utils.FormatFileSize(s.MaxRequestSize))
	} else {
		setting("Request size limit", "disabled")
		warnings = append(warnings, "uploads are not size limited")
	}

	if rl := s.RateLimit; rl != nil && rl.Enabled {
		var scopes []string
		if rl.ByAPIKey {
			scopes = append(scopes, "api key")
		}
		if rl.ByIP {
			scopes = append(scopes, "ip")
		}
		setting("Rate limiting", fmt.Sprintf("%d/min, burst %d, by %s",
			rl.RequestsPerMin, rl.BurstCapacity, strings.Join(scopes, " and ")))
	} else {
		setting("Rate limiting", "disabled")
	}

	mode := s.TLSConfig.Mode
	if mode == "" {
		mode = "disabled"
	}
	setting("TLS", mode)

	if s.AppConfig != nil && s.AppConfig.Detection.RulesFile != "" {
		setting("Detection rules", s.AppConfig.Detection.RulesFile+" (reloaded on change)")
	} else {
		setting("Detection rules", "built-in")
	}
	_ = tw.Flush()

	for _, warning := range warnings {
		_, _ = fmt.Fprintf(w, "WARNING: %s\n", warning)
	}
}
