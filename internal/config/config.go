package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every environment variable the configuration reads
const EnvPrefix = "RESUMEGUARD"

// Config holds all application configuration
// API Key Precedence Order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (RESUMEGUARD_SERVER_APIKEYS)
// 4. Default values - Lowest priority
type Config struct {
	Detection     DetectionConfig     `mapstructure:"detection"`
	Extraction    ExtractionConfig    `mapstructure:"extraction"`
	Server        ServerConfig        `mapstructure:"server"`
	App           AppConfig           `mapstructure:"app"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ExtractionConfig bounds the work done decoding a single document
type ExtractionConfig struct {
	MaxPages       int                  `mapstructure:"maxPages"`
	MaxGlyphs      int                  `mapstructure:"maxGlyphs"`
	MaxOperators   int                  `mapstructure:"maxOperators"`
	MaxEntrySize   int64                `mapstructure:"maxEntrySize"` // decompressed bytes per DOCX part
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
}

// CircuitBreakerConfig represents circuit breaker configuration
type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`          // Whether circuit breaker is enabled
	MaxRequests      uint32        `mapstructure:"maxRequests"`      // Max requests allowed when half-open
	Interval         time.Duration `mapstructure:"interval"`         // Interval to clear counts
	Timeout          time.Duration `mapstructure:"timeout"`          // Timeout for half-open to open
	MinRequests      uint32        `mapstructure:"minRequests"`      // Minimum requests before tripping
	FailureThreshold float64       `mapstructure:"failureThreshold"` // Failure ratio threshold (0.0-1.0)
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         string        `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`

	TLS TLSConfig `mapstructure:"tls"`

	// Valid API keys for authentication; empty disables auth
	APIKeys []string `mapstructure:"apiKeys"`

	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
}

// TLSConfig holds TLS/mTLS configuration
type TLSConfig struct {
	Mode     string `mapstructure:"mode"`     // "disabled", "server", "mutual"
	CertFile string `mapstructure:"certFile"` // PEM
	KeyFile  string `mapstructure:"keyFile"`  // PEM
	CAFile   string `mapstructure:"caFile"`   // PEM, required for mutual mode

	// PEM content, filled from Vault
	CertContent string `mapstructure:"certContent"`
	KeyContent  string `mapstructure:"keyContent"`
	CAContent   string `mapstructure:"caContent"`

	MinVersion       string `mapstructure:"minVersion"`       // "1.2", "1.3"
	ClientAuthPolicy string `mapstructure:"clientAuthPolicy"` // "require", "request", "verify"
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	RequestsPerMin int  `mapstructure:"requestsPerMin"`
	BurstCapacity  int  `mapstructure:"burstCapacity"`
	ByIP           bool `mapstructure:"byIP"`
	ByAPIKey       bool `mapstructure:"byAPIKey"`
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
	MaxFileSize      int64    `mapstructure:"maxFileSize"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool             `mapstructure:"enabled"`
	ServiceName     string           `mapstructure:"serviceName"`
	ServiceVersion  string           `mapstructure:"serviceVersion"`
	ServiceInstance string           `mapstructure:"serviceInstance"`
	ConsoleOutput   bool             `mapstructure:"consoleOutput"`
	SampleRate      float64          `mapstructure:"sampleRate"`
	Tracing         TracingConfig    `mapstructure:"tracing"`
	Metrics         MetricsConfig    `mapstructure:"metrics"`
	Console         ConsoleConfig    `mapstructure:"console"`
	Prometheus      PrometheusConfig `mapstructure:"prometheus"`
	OTLP            OTLPConfig       `mapstructure:"otlp"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled    bool    `mapstructure:"enabled"`
	SampleRate float64 `mapstructure:"sampleRate"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled            bool          `mapstructure:"enabled"`
	CollectionInterval time.Duration `mapstructure:"collectionInterval"`
}

// ConsoleConfig holds console output configuration
type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// PrometheusConfig holds Prometheus configuration
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Port     string `mapstructure:"port"`
}

// OTLPConfig holds OTLP exporter configuration
type OTLPConfig struct {
	Enabled  bool              `mapstructure:"enabled"`
	Endpoint string            `mapstructure:"endpoint"`
	Insecure bool              `mapstructure:"insecure"`
	Headers  map[string]string `mapstructure:"headers"`
}

// LoadConfig loads configuration from environment variables and a config file
func LoadConfig() (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	v := viper.New()

	// Lowest precedence: built-in defaults
	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	// Environment variables override the config file, e.g. RESUMEGUARD_SERVER_PORT
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	log.Printf("[CONFIG] Configured environment variable handling with prefix '%s'", EnvPrefix)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/resumeguard/")
	v.AddConfigPath("$HOME/.resumeguard")
	v.AddConfigPath(".")
	log.Println("[CONFIG] Configured config file search paths: /etc/resumeguard/, $HOME/.resumeguard, .")

	// A missing config file is fine, a broken one is not
	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		log.Println("[CONFIG] No config file found, using defaults and environment variables")
	} else {
		configFileUsed = v.ConfigFileUsed()
		log.Printf("[CONFIG] Successfully loaded config file: %s", configFileUsed)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	log.Println("[CONFIG] Successfully unmarshaled configuration")

	config.applyFallbacks()
	log.Println("[CONFIG] Applied configuration fallbacks and environment variable overrides")

	// The rules file overlays the detection section
	if config.Detection.RulesFile != "" {
		overlay, err := LoadRulesFile(config.Detection.RulesFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load detection rules: %w", err)
		}
		config.Detection = config.Detection.Merge(overlay)
		log.Printf("[CONFIG] Applied detection rules from %s", config.Detection.RulesFile)
	}

	config.logConfigurationSources(configFileUsed)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Detection.Validate(); err != nil {
		return fmt.Errorf("detection configuration error: %w", err)
	}

	if c.Extraction.MaxPages <= 0 || c.Extraction.MaxGlyphs <= 0 || c.Extraction.MaxOperators <= 0 {
		return fmt.Errorf("extraction limits must be positive")
	}
	if c.Extraction.MaxEntrySize < 0 {
		return fmt.Errorf("extraction.maxEntrySize must not be negative")
	}

	// Validate circuit breaker configuration
	if cb := c.Extraction.CircuitBreaker; cb.Enabled && (cb.FailureThreshold <= 0 || cb.FailureThreshold > 1) {
		return fmt.Errorf("circuit breaker failureThreshold must be in (0, 1], got %v", cb.FailureThreshold)
	}

	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	// Validate supported formats
	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	if c.App.MaxFileSize <= 0 {
		return fmt.Errorf("app maxFileSize must be positive")
	}

	if err := c.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	return nil
}

// ValidateTLSConfig validates the TLS configuration
func (c *Config) ValidateTLSConfig() error {
	tls := c.Server.TLS

	hasCert := tls.CertFile != "" || tls.CertContent != ""
	hasKey := tls.KeyFile != "" || tls.KeyContent != ""

	switch tls.Mode {
	case "disabled":
		return nil
	case "server", "mutual":
		if !hasCert || !hasKey {
			return fmt.Errorf("TLS certificate and key are required for %s mode (provide either files or content)", tls.Mode)
		}
		if tls.CertFile != "" && tls.CertContent != "" {
			return fmt.Errorf("cannot specify both certFile and certContent - choose one")
		}
		if tls.KeyFile != "" && tls.KeyContent != "" {
			return fmt.Errorf("cannot specify both keyFile and keyContent - choose one")
		}
	default:
		return fmt.Errorf("invalid TLS mode: %s (must be 'disabled', 'server', or 'mutual')", tls.Mode)
	}

	if tls.Mode == "mutual" {
		if tls.CAFile == "" && tls.CAContent == "" {
			return fmt.Errorf("CA certificate is required for mutual TLS mode (provide either caFile or caContent)")
		}
		switch tls.ClientAuthPolicy {
		case "", "require", "request", "verify":
		default:
			return fmt.Errorf("invalid clientAuthPolicy: %s (must be 'require', 'request', or 'verify')", tls.ClientAuthPolicy)
		}
	}

	switch tls.MinVersion {
	case "", "1.2", "1.3":
	default:
		return fmt.Errorf("invalid TLS minVersion: %s (must be '1.2' or '1.3')", tls.MinVersion)
	}

	return nil
}
