package server

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
)

// configureTLS sets up TLS configuration based on the mode
func (s *Server) configureTLS(httpServer *http.Server) error {
	addr := httpServer.Addr

	switch s.TLSConfig.Mode {
	case "server":
		fmt.Printf("Starting server with HTTPS (server-only TLS) on https://%s\n", addr)
		fmt.Println("TLS mode: Server-only (no client certificates required)")
	case "mutual":
		fmt.Printf("Starting server with mTLS (mutual TLS) on https://%s\n", addr)
		fmt.Println("TLS mode: Mutual (client certificates required)")
	case "disabled", "":
		fmt.Printf("Starting server on http://%s\n", addr)
		fmt.Println("TLS mode: Disabled (HTTP only)")
		return nil
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled', 'server', or 'mutual')", s.TLSConfig.Mode)
	}

	tlsConfig, err := s.buildTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to set up %s TLS: %w", s.TLSConfig.Mode, err)
	}
	httpServer.TLSConfig = tlsConfig
	return nil
}

// buildTLSConfig creates the TLS configuration from PEM files or content
func (s *Server) buildTLSConfig() (*tls.Config, error) {
	cert, err := s.loadServerCertificate()
	if err != nil {
		return nil, err
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tlsMinVersion(s.TLSConfig.MinVersion),
		ClientAuth:   tls.NoClientCert,
	}

	// Mutual mode also verifies client certificates against the CA bundle
	if s.TLSConfig.Mode == "mutual" {
		caPool, err := s.loadCACertificatePool()
		if err != nil {
			return nil, err
		}
		tlsConfig.ClientCAs = caPool
		tlsConfig.ClientAuth = clientAuthPolicy(s.TLSConfig.ClientAuthPolicy)
	}

	return tlsConfig, nil
}

// loadServerCertificate prefers PEM content (filled from Vault) over files
func (s *Server) loadServerCertificate() (tls.Certificate, error) {
	// Content from Vault first
	if s.TLSConfig.CertContent != "" && s.TLSConfig.KeyContent != "" {
		cert, err := tls.X509KeyPair([]byte(s.TLSConfig.CertContent), []byte(s.TLSConfig.KeyContent))
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to load server cert/key from content: %w", err)
		}
		return cert, nil
	}

	// Then files on disk
	if s.TLSConfig.CertFile != "" && s.TLSConfig.KeyFile != "" {
		cert, err := tls.LoadX509KeyPair(s.TLSConfig.CertFile, s.TLSConfig.KeyFile)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("failed to load server cert/key from files: %w", err)
		}
		return cert, nil
	}

	return tls.Certificate{}, fmt.Errorf("TLS certificate and key are required (provide either files or content)")
}

// loadCACertificatePool loads the CA bundle used to verify client certificates
func (s *Server) loadCACertificatePool() (*x509.CertPool, error) {
	var caCert []byte
	switch {
	case s.TLSConfig.CAContent != "":
		caCert = []byte(s.TLSConfig.CAContent)
	case s.TLSConfig.CAFile != "":
		data, err := os.ReadFile(s.TLSConfig.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		caCert = data
	default:
		return nil, fmt.Errorf("CA certificate is required for mutual TLS mode (provide either caFile or caContent)")
	}

	pool := x509.NewCertPool()
	if ok := pool.AppendCertsFromPEM(caCert); !ok {
		return nil, fmt.Errorf("failed to append CA cert")
	}
	return pool, nil
}

// tlsMinVersion maps "1.3" to TLS 1.3; anything else gets the TLS 1.2 floor
func tlsMinVersion(version string) uint16 {
	if version == "1.3" {
		return tls.VersionTLS13
	}
	return tls.VersionTLS12
}

// clientAuthPolicy maps the config value to a tls.ClientAuthType
func clientAuthPolicy(policy string) tls.ClientAuthType {
	switch policy {
	case "request":
		return tls.RequestClientCert
	case "verify":
		return tls.VerifyClientCertIfGiven
	default: // "require" and unset
		return tls.RequireAndVerifyClientCert
	}
}
