package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Detection
	v.SetDefault("detection.timeout", 10*time.Second)
	v.SetDefault("detection.regexTimeout", 2*time.Second)
	v.SetDefault("detection.rulesFile", "")
	v.SetDefault("detection.stuffedTerms", DefaultStuffedTerms)
	v.SetDefault("detection.repetitionPatterns", DefaultRepetitionPatterns)
	v.SetDefault("detection.stylePatterns", DefaultStylePatterns)
	v.SetDefault("detection.invisibleCodePoints", DefaultInvisibleCodePoints)

	// Extraction
	v.SetDefault("extraction.maxPages", 50)
	v.SetDefault("extraction.maxGlyphs", 200000)
	v.SetDefault("extraction.maxOperators", 500000)
	v.SetDefault("extraction.maxEntrySize", 64<<20)
	v.SetDefault("extraction.circuitBreaker.enabled", true)
	v.SetDefault("extraction.circuitBreaker.maxRequests", 3)
	v.SetDefault("extraction.circuitBreaker.interval", 60*time.Second)
	v.SetDefault("extraction.circuitBreaker.timeout", 30*time.Second)
	v.SetDefault("extraction.circuitBreaker.minRequests", 10)
	v.SetDefault("extraction.circuitBreaker.failureThreshold", 0.8)

	// Server
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("server.writeTimeout", 30*time.Second)
	v.SetDefault("server.idleTimeout", 120*time.Second)
	v.SetDefault("server.tls.mode", "disabled") // disabled, server, mutual
	v.SetDefault("server.tls.certFile", "")
	v.SetDefault("server.tls.keyFile", "")
	v.SetDefault("server.tls.caFile", "")
	v.SetDefault("server.tls.minVersion", "1.2")
	v.SetDefault("server.tls.clientAuthPolicy", "require")
	v.SetDefault("server.apiKeys", []string{})
	v.SetDefault("server.rateLimit.enabled", false)
	v.SetDefault("server.rateLimit.requestsPerMin", 60)
	v.SetDefault("server.rateLimit.burstCapacity", 10)
	v.SetDefault("server.rateLimit.byIP", true)
	v.SetDefault("server.rateLimit.byAPIKey", false)

	// App
	v.SetDefault("app.logLevel", "info")
	v.SetDefault("app.defaultFormat", "json")
	v.SetDefault("app.supportedFormats", []string{"json", "text", "markdown"})
	v.SetDefault("app.maxFileSize", 10*1024*1024) // 10MB, resumes with embedded fonts are large

	// Vault
	v.SetDefault("vault.enabled", false)
	v.SetDefault("vault.address", "")
	v.SetDefault("vault.token", "")
	v.SetDefault("vault.tokenFile", "")
	v.SetDefault("vault.namespace", "")
	v.SetDefault("vault.secrets.apiKeys", "")
	v.SetDefault("vault.secrets.tlsCerts", "")
	v.SetDefault("vault.secrets.stuffedTerms", "")

	// Observability
	v.SetDefault("observability.enabled", true)
	v.SetDefault("observability.serviceName", "resumeguard")
	v.SetDefault("observability.serviceVersion", "")
	v.SetDefault("observability.serviceInstance", "")
	v.SetDefault("observability.consoleOutput", false)
	v.SetDefault("observability.sampleRate", 1.0)
	v.SetDefault("observability.tracing.enabled", true)
	v.SetDefault("observability.tracing.sampleRate", 1.0)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.collectionInterval", 15*time.Second)
	v.SetDefault("observability.console.enabled", false)
	v.SetDefault("observability.console.prettyPrint", true)
	v.SetDefault("observability.prometheus.enabled", true)
	v.SetDefault("observability.prometheus.endpoint", "/metrics")
	v.SetDefault("observability.prometheus.port", "9090")
	v.SetDefault("observability.otlp.enabled", false)
	v.SetDefault("observability.otlp.endpoint", "http://localhost:4318")
	v.SetDefault("observability.otlp.insecure", true)
	v.SetDefault("observability.otlp.headers", map[string]string{})
}
