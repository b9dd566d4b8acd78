package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
// API Key Precedence Order:
// 1. Vault (if configured) - Highest priority
// 2. Config File values
// 3. Environment Variables (INTERVIEWROOM_SERVICE_APIKEY, also read from .env)
// 4. Default values - Lowest priority
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Service       ServiceConfig       `mapstructure:"service"`
	Session       SessionConfig       `mapstructure:"session"`
	Media         MediaConfig         `mapstructure:"media"`
	Speech        SpeechConfig        `mapstructure:"speech"`
	History       HistoryConfig       `mapstructure:"history"`
	Vault         VaultConfig         `mapstructure:"vault"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// AppConfig holds general application configuration
type AppConfig struct {
	LogLevel         string   `mapstructure:"logLevel"`
	DefaultFormat    string   `mapstructure:"defaultFormat"`
	SupportedFormats []string `mapstructure:"supportedFormats"`
}

// ServiceConfig holds Interview Service client configuration
type ServiceConfig struct {
	BaseURL   string `mapstructure:"baseURL"`
	APIKey    string `mapstructure:"apiKey"`
	ReportURL string `mapstructure:"reportURL"` // may contain {sessionId}
	UserAgent string `mapstructure:"userAgent"`

	Paths          ServicePaths         `mapstructure:"paths"`
	Timeouts       ServiceTimeouts      `mapstructure:"timeouts"`
	RateLimit      RateLimitConfig      `mapstructure:"rateLimit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuitBreaker"`
	TLS            TLSConfig            `mapstructure:"tls"`
}

// ServicePaths holds the endpoint path of each service operation
type ServicePaths struct {
	Start    string `mapstructure:"start"`
	Answer   string `mapstructure:"answer"`
	TTS      string `mapstructure:"tts"`
	Finalize string `mapstructure:"finalize"`
}

// ServiceTimeouts holds per-operation request timeouts
type ServiceTimeouts struct {
	Start    time.Duration `mapstructure:"start"`
	Answer   time.Duration `mapstructure:"answer"`
	TTS      time.Duration `mapstructure:"tts"`
	Finalize time.Duration `mapstructure:"finalize"`
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

// RateLimitConfig holds client-side request pacing configuration
type RateLimitConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	RequestsPerMin int  `mapstructure:"requestsPerMin"`
	BurstCapacity  int  `mapstructure:"burstCapacity"`
}

// TLSConfig holds client TLS/mTLS configuration for the service connection
type TLSConfig struct {
	Mode     string `mapstructure:"mode"`     // "disabled" (system defaults), "custom", "mutual"
	CertFile string `mapstructure:"certFile"` // Client certificate (PEM), mutual mode
	KeyFile  string `mapstructure:"keyFile"`  // Client private key (PEM), mutual mode
	CAFile   string `mapstructure:"caFile"`   // CA bundle used to verify the service

	// Certificate content (used when loaded from Vault instead of files)
	CertContent string `mapstructure:"certContent"`
	KeyContent  string `mapstructure:"keyContent"`
	CAContent   string `mapstructure:"caContent"`

	MinVersion         string `mapstructure:"minVersion"` // "1.2", "1.3"
	InsecureSkipVerify bool   `mapstructure:"insecureSkipVerify"`
	ServerName         string `mapstructure:"serverName"`

	AutoReload AutoReloadConfig `mapstructure:"autoReload"`
}

// AutoReloadConfig controls reloading the client certificate when its files change
type AutoReloadConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	DebounceDelay time.Duration `mapstructure:"debounceDelay"`
}

// SessionConfig holds interview session behavior
type SessionConfig struct {
	TargetQuestions   int  `mapstructure:"targetQuestions"`
	UseLocalSynthesis bool `mapstructure:"useLocalSynthesis"`
	Playback          bool `mapstructure:"playback"`
	OpenReport        bool `mapstructure:"openReport"`
}

// MediaConfig holds audio capture configuration
type MediaConfig struct {
	Device      string        `mapstructure:"device"`  // "command" or "file"
	Command     []string      `mapstructure:"command"` // recorder argv, audio on stdout
	Answers     []string      `mapstructure:"answers"` // pre-recorded answers for the file device
	MIMEType    string        `mapstructure:"mimeType"`
	MaxDuration time.Duration `mapstructure:"maxDuration"`
	MaxBytes    int64         `mapstructure:"maxBytes"`
	ChunkSize   int           `mapstructure:"chunkSize"`
}

// SpeechConfig holds playback configuration
type SpeechConfig struct {
	Engine          string   `mapstructure:"engine"` // "auto", "say", "espeak-ng", "none"
	PreferredVoices []string `mapstructure:"preferredVoices"`
	Rate            int      `mapstructure:"rate"`   // words per minute, 0 uses the engine default
	Player          []string `mapstructure:"player"` // argv of a player reading audio from stdin
}

// HistoryConfig controls the local record of finished sessions
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"` // SQLite database file, empty uses $HOME/.interviewroom/history.db
	Limit   int    `mapstructure:"limit"`
}

// ObservabilityConfig holds observability configuration
type ObservabilityConfig struct {
	Enabled         bool                `mapstructure:"enabled"`
	ServiceName     string              `mapstructure:"serviceName"`
	ServiceVersion  string              `mapstructure:"serviceVersion"`
	ServiceInstance string              `mapstructure:"serviceInstance"`
	ConsoleOutput   bool                `mapstructure:"consoleOutput"`
	SampleRate      float64             `mapstructure:"sampleRate"`
	Tracing         TracingConfig       `mapstructure:"tracing"`
	Metrics         MetricsConfig       `mapstructure:"metrics"`
	CustomMetrics   CustomMetricsConfig `mapstructure:"customMetrics"`
	Console         ConsoleConfig       `mapstructure:"console"`
	Prometheus      PrometheusConfig    `mapstructure:"prometheus"`
	OTLP            OTLPConfig          `mapstructure:"otlp"`
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

// ConsoleConfig holds console exporter configuration
type ConsoleConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	PrettyPrint bool `mapstructure:"prettyPrint"`
}

// CustomMetricsConfig holds fine-grained custom metrics configuration
type CustomMetricsConfig struct {
	ServiceCalls   ServiceCallMetricsConfig    `mapstructure:"serviceCalls"`
	Session        SessionMetricsConfig        `mapstructure:"session"`
	Infrastructure InfrastructureMetricsConfig `mapstructure:"infrastructure"`
}

// ServiceCallMetricsConfig holds Interview Service call metrics configuration
type ServiceCallMetricsConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	TrackDuration  bool `mapstructure:"trackDuration"`
	TrackAudioSize bool `mapstructure:"trackAudioSize"`
}

// SessionMetricsConfig holds session metrics configuration
type SessionMetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// InfrastructureMetricsConfig holds infrastructure metrics configuration
type InfrastructureMetricsConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	TrackRateLimits bool `mapstructure:"trackRateLimits"`
	TrackCertReload bool `mapstructure:"trackCertReload"`
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

// EnvPrefix is the prefix of every environment variable read by the configuration
const EnvPrefix = "INTERVIEWROOM"

// LoadConfig loads configuration from .env, environment variables and a config file
func LoadConfig() (*Config, error) {
	return LoadConfigWith(viper.New(), "")
}

// LoadConfigWith loads configuration into the given viper instance.
// If configFile is set it is used instead of the search paths.
func LoadConfigWith(v *viper.Viper, configFile string) (*Config, error) {
	log.Println("[CONFIG] Starting configuration loading process")

	loadDotEnv(".env")

	setDefaults(v)
	log.Println("[CONFIG] Applied default configuration values")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("/etc/interviewroom/")
		v.AddConfigPath("$HOME/.interviewroom")
		v.AddConfigPath(".")
	}

	configFileUsed := ""
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
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

	config.applyFallbacks()
	config.logConfigurationSources(configFileUsed)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	log.Println("[CONFIG] Configuration loading completed successfully")
	return &config, nil
}

// loadDotEnv loads a .env file if present. Variables already set in the
// environment win over the file.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return
		}
		log.Printf("[CONFIG] Ignoring unreadable %s: %v", path, err)
		return
	}
	log.Printf("[CONFIG] Loaded environment from %s", path)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Service.BaseURL == "" {
		return fmt.Errorf("service base URL is required (set %s_SERVICE_BASEURL environment variable)", EnvPrefix)
	}
	if !strings.HasPrefix(c.Service.BaseURL, "http://") && !strings.HasPrefix(c.Service.BaseURL, "https://") {
		return fmt.Errorf("service base URL must start with http:// or https://: %s", c.Service.BaseURL)
	}

	if err := c.validateTimeouts(); err != nil {
		return err
	}

	if c.Session.TargetQuestions <= 0 {
		return fmt.Errorf("session targetQuestions must be positive")
	}

	switch c.Media.Device {
	case "command":
		if len(c.Media.Command) == 0 {
			return fmt.Errorf("media command is required for the command device")
		}
	case "file":
	default:
		return fmt.Errorf("invalid media device: %s (must be 'command' or 'file')", c.Media.Device)
	}
	if c.Media.MaxDuration < 0 || c.Media.MaxBytes < 0 {
		return fmt.Errorf("media limits must not be negative")
	}

	switch c.Speech.Engine {
	case "auto", "say", "espeak-ng", "none":
	default:
		return fmt.Errorf("invalid speech engine: %s (must be 'auto', 'say', 'espeak-ng' or 'none')", c.Speech.Engine)
	}

	if c.History.Limit < 0 {
		return fmt.Errorf("history limit must not be negative")
	}

	validFormats := make(map[string]bool)
	for _, format := range c.App.SupportedFormats {
		validFormats[format] = true
	}
	if !validFormats[c.App.DefaultFormat] {
		return fmt.Errorf("invalid default format: %s", c.App.DefaultFormat)
	}

	// Vault-sourced certificates are checked once secrets are applied
	if c.Vault.Enabled && c.Vault.Secrets.TLSCerts != "" {
		return nil
	}
	if err := c.ValidateTLSConfig(); err != nil {
		return fmt.Errorf("TLS configuration error: %w", err)
	}

	return nil
}

func (c *Config) validateTimeouts() error {
	timeouts := map[string]time.Duration{
		"start":    c.Service.Timeouts.Start,
		"answer":   c.Service.Timeouts.Answer,
		"tts":      c.Service.Timeouts.TTS,
		"finalize": c.Service.Timeouts.Finalize,
	}
	for name, timeout := range timeouts {
		if timeout <= 0 {
			return fmt.Errorf("service %s timeout must be positive", name)
		}
	}
	return nil
}

// ReportURL expands the configured report URL template for a session
func (c *Config) ReportURL(sessionID string) string {
	tmpl := c.Service.ReportURL
	if tmpl == "" {
		tmpl = strings.TrimRight(c.Service.BaseURL, "/") + "/interview/report/{sessionId}"
	}
	return strings.ReplaceAll(tmpl, "{sessionId}", sessionID)
}
