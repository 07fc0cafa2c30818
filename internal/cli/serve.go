package cli

import (
	"fmt"

	"resumeguard/internal/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start HTTP server for resume scanning",
	Long: `Start an HTTP server that scans uploaded resumes.

Available endpoints:
- POST /scan: multipart upload with a 'document' file, optional 'type' (pdf|docx)
  and optional 'profile' JSON; returns the fraud report
- GET /health: Health check endpoint
- GET /stats: Scan, rules and rate limiting statistics

When detection.rulesFile is set the rules are reloaded whenever the file changes.

TLS Configuration:
- Use --tls-mode to set TLS mode: disabled, server, mutual
- Use --cert-file and --key-file for TLS certificates
- Use --ca-file for mutual TLS client certificate verification`,
	RunE: runServe,
}

var serveFlags struct {
	port     string
	host     string
	tlsMode  string
	certFile string
	keyFile  string
	caFile   string
}

func init() {
	serveCmd.Flags().StringVarP(&serveFlags.port, "port", "p", "", "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveFlags.host, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&serveFlags.tlsMode, "tls-mode", "", "TLS mode: disabled, server, mutual (overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.certFile, "cert-file", "", "Server certificate file (PEM, overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.keyFile, "key-file", "", "Server private key file (PEM, overrides config)")
	serveCmd.Flags().StringVar(&serveFlags.caFile, "ca-file", "", "CA certificate file for client cert verification (PEM, overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := getConfigFromContext(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := getLoggerFromContext(cmd.Context())
	if err != nil {
		return err
	}

	override := func(target *string, value string) {
		if value != "" {
			*target = value
		}
	}
	override(&cfg.Server.Port, serveFlags.port)
	override(&cfg.Server.Host, serveFlags.host)
	override(&cfg.Server.TLS.Mode, serveFlags.tlsMode)
	override(&cfg.Server.TLS.CertFile, serveFlags.certFile)
	override(&cfg.Server.TLS.KeyFile, serveFlags.keyFile)
	override(&cfg.Server.TLS.CAFile, serveFlags.caFile)

	// Flags may have changed the TLS settings validated at load time
	if err := cfg.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}

	return server.NewServer(cfg, server.NewServerConfig(cfg, Version), logger).Start(cmd.Context())
}
