package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		App: AppConfig{
			LogLevel:         "info",
			DefaultFormat:    "text",
			SupportedFormats: []string{"json", "text", "markdown", "yaml"},
		},
		Service: ServiceConfig{
			BaseURL: "https://interview.example.com",
			Timeouts: ServiceTimeouts{
				Start:    30 * time.Second,
				Answer:   90 * time.Second,
				TTS:      20 * time.Second,
				Finalize: 120 * time.Second,
			},
			TLS: TLSConfig{Mode: "disabled"},
		},
		Session: SessionConfig{TargetQuestions: 10},
		Media:   MediaConfig{Device: "file"},
		Speech:  SpeechConfig{Engine: "auto"},
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := LoadConfigWith(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Session.TargetQuestions)
	assert.False(t, cfg.Session.UseLocalSynthesis)
	assert.Equal(t, "/api/interview/start", cfg.Service.Paths.Start)
	assert.Equal(t, "/api/interview/answer", cfg.Service.Paths.Answer)
	assert.Equal(t, "/api/interview/tts", cfg.Service.Paths.TTS)
	assert.Equal(t, "/api/interview/finalize", cfg.Service.Paths.Finalize)
	assert.Equal(t, 90*time.Second, cfg.Service.Timeouts.Answer)
	assert.Equal(t, 120*time.Second, cfg.Service.Timeouts.Finalize)
	assert.Equal(t, "command", cfg.Media.Device)
	assert.Equal(t, 3*time.Minute, cfg.Media.MaxDuration)
	assert.Equal(t, "disabled", cfg.Service.TLS.Mode)
	assert.NotEmpty(t, cfg.Observability.ServiceInstance)
}

func TestLoadConfigFileAndEnvironment(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	configFile := filepath.Join(dir, "practice.yaml")
	content := `
service:
  baseURL: https://api.example.com
  reportURL: https://app.example.com/interview/{sessionId}/report
session:
  targetQuestions: 5
media:
  device: file
  answers: [a.wav, b.wav]
speech:
  preferredVoices: [Daniel]
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0o600))

	t.Setenv("INTERVIEWROOM_SESSION_TARGETQUESTIONS", "7")
	t.Setenv("INTERVIEWROOM_SERVICE_APIKEY", "secret-key")

	cfg, err := LoadConfigWith(viper.New(), configFile)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.com", cfg.Service.BaseURL)
	assert.Equal(t, 7, cfg.Session.TargetQuestions, "environment overrides file")
	assert.Equal(t, "secret-key", cfg.Service.APIKey)
	assert.Equal(t, []string{"a.wav", "b.wav"}, cfg.Media.Answers)
	assert.Equal(t, []string{"Daniel"}, cfg.Speech.PreferredVoices)
	assert.Equal(t, "https://app.example.com/interview/abc/report", cfg.ReportURL("abc"))
}

func TestLoadConfigReadsDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("INTERVIEWROOM_API_KEY=from-dotenv\n"), 0o600))
	// godotenv sets process env; make sure it is cleaned up after the test
	t.Setenv("INTERVIEWROOM_API_KEY", "")
	require.NoError(t, os.Unsetenv("INTERVIEWROOM_API_KEY"))

	cfg, err := LoadConfigWith(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "from-dotenv", cfg.Service.APIKey)
}

func TestLoadConfigInvalidFile(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	configFile := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("service: [unterminated"), 0o600))

	_, err := LoadConfigWith(viper.New(), configFile)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errContains string
	}{
		{
			name:   "valid",
			mutate: func(*Config) {},
		},
		{
			name:        "missing base URL",
			mutate:      func(c *Config) { c.Service.BaseURL = "" },
			errContains: "base URL is required",
		},
		{
			name:        "base URL without scheme",
			mutate:      func(c *Config) { c.Service.BaseURL = "interview.example.com" },
			errContains: "must start with http",
		},
		{
			name:        "zero answer timeout",
			mutate:      func(c *Config) { c.Service.Timeouts.Answer = 0 },
			errContains: "answer timeout must be positive",
		},
		{
			name:        "zero target questions",
			mutate:      func(c *Config) { c.Session.TargetQuestions = 0 },
			errContains: "targetQuestions must be positive",
		},
		{
			name:        "command device without command",
			mutate:      func(c *Config) { c.Media.Device = "command" },
			errContains: "media command is required",
		},
		{
			name:        "unknown device",
			mutate:      func(c *Config) { c.Media.Device = "bluetooth" },
			errContains: "invalid media device",
		},
		{
			name:        "unknown speech engine",
			mutate:      func(c *Config) { c.Speech.Engine = "festival" },
			errContains: "invalid speech engine",
		},
		{
			name:        "unsupported default format",
			mutate:      func(c *Config) { c.App.DefaultFormat = "pdf" },
			errContains: "invalid default format",
		},
		{
			name:        "invalid TLS mode",
			mutate:      func(c *Config) { c.Service.TLS.Mode = "server" },
			errContains: "TLS configuration error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.errContains == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errContains)
		})
	}
}

func TestReportURL(t *testing.T) {
	cfg := validConfig()

	assert.Equal(t, "https://interview.example.com/interview/report/s-1", cfg.ReportURL("s-1"))

	cfg.Service.ReportURL = "https://app.example.com/report?session={sessionId}"
	assert.Equal(t, "https://app.example.com/report?session=s-2", cfg.ReportURL("s-2"))

	cfg.Service.ReportURL = "https://app.example.com/latest"
	assert.False(t, strings.Contains(cfg.ReportURL("s-3"), "s-3"))
}

func TestApplyServiceAPIKeyFallback(t *testing.T) {
	t.Setenv("INTERVIEWROOM_API_KEY", "  fallback  ")

	cfg := validConfig()
	cfg.applyFallbacks()
	assert.Equal(t, "fallback", cfg.Service.APIKey)

	cfg = validConfig()
	cfg.Service.APIKey = "explicit"
	cfg.applyFallbacks()
	assert.Equal(t, "explicit", cfg.Service.APIKey)
}
