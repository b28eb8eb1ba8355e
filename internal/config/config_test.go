package config

import (
	"log/slog"
	"os"
	"testing"
	"time"
)

// helper to clear all KUEUE_OBSERVER_ env vars before each test
func clearEnv(t *testing.T) {
	t.Helper()
	envVars := []string{
		"KUEUE_OBSERVER_API_URL",
		"KUEUE_OBSERVER_QUEUE_GROUP_VERSION",
		"KUEUE_OBSERVER_VISIBILITY_GROUP_VERSION",
		"KUEUE_OBSERVER_POLL_INTERVAL",
		"KUEUE_OBSERVER_REFRESH_INTERVAL",
		"KUEUE_OBSERVER_DETAIL_RETRY_INTERVAL",
		"KUEUE_OBSERVER_REQUEST_TIMEOUT",
		"KUEUE_OBSERVER_INITIAL_SYNC_TIMEOUT",
		"KUEUE_OBSERVER_MAX_RETRIES",
		"KUEUE_OBSERVER_SUBMITTER_LABEL",
		"KUEUE_OBSERVER_HEALTH_PORT",
		"KUEUE_OBSERVER_SERVER_PORT",
		"KUEUE_OBSERVER_ALLOWED_ORIGINS",
		"KUEUE_OBSERVER_ID",
		"KUEUE_OBSERVER_VERSION",
		"KUEUE_OBSERVER_LOG_LEVEL",
		"KUEUE_OBSERVER_DEBUG_ENDPOINTS",
	}
	for _, v := range envVars {
		os.Unsetenv(v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.APIURL != "" {
		t.Errorf("APIURL = %q, want empty", cfg.APIURL)
	}
	if cfg.QueueGroupVersion != "kueue.x-k8s.io/v1beta1" {
		t.Errorf("QueueGroupVersion = %q, want %q", cfg.QueueGroupVersion, "kueue.x-k8s.io/v1beta1")
	}
	if cfg.VisibilityGroupVersion != "" {
		t.Errorf("VisibilityGroupVersion = %q, want empty (discover)", cfg.VisibilityGroupVersion)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("PollInterval = %v, want 1s", cfg.PollInterval)
	}
	if cfg.RefreshInterval != time.Second {
		t.Errorf("RefreshInterval = %v, want 1s", cfg.RefreshInterval)
	}
	if cfg.DetailRetryInterval != 10*time.Second {
		t.Errorf("DetailRetryInterval = %v, want 10s", cfg.DetailRetryInterval)
	}
	if cfg.RequestTimeout != 10*time.Second {
		t.Errorf("RequestTimeout = %v, want 10s", cfg.RequestTimeout)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d, want 2", cfg.MaxRetries)
	}
	if cfg.SubmitterLabel != "x-jobby.io/submitter" {
		t.Errorf("SubmitterLabel = %q, want %q", cfg.SubmitterLabel, "x-jobby.io/submitter")
	}
	if cfg.HealthPort != 8080 {
		t.Errorf("HealthPort = %d, want 8080", cfg.HealthPort)
	}
	if cfg.ServerPort != 8090 {
		t.Errorf("ServerPort = %d, want 8090", cfg.ServerPort)
	}
	if cfg.ObserverID == "" {
		t.Error("ObserverID should be auto-generated when empty")
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
	if cfg.DebugEndpoints {
		t.Error("DebugEndpoints should default to false")
	}
}

func TestLoad_AllEnvVars(t *testing.T) {
	clearEnv(t)
	t.Setenv("KUEUE_OBSERVER_API_URL", "http://127.0.0.1:8001/")
	t.Setenv("KUEUE_OBSERVER_VISIBILITY_GROUP_VERSION", "visibility.kueue.x-k8s.io/v1beta2")
	t.Setenv("KUEUE_OBSERVER_POLL_INTERVAL", "2s")
	t.Setenv("KUEUE_OBSERVER_REFRESH_INTERVAL", "500ms")
	t.Setenv("KUEUE_OBSERVER_MAX_RETRIES", "0")
	t.Setenv("KUEUE_OBSERVER_SUBMITTER_LABEL", "example.com/owner")
	t.Setenv("KUEUE_OBSERVER_SERVER_PORT", "9000")
	t.Setenv("KUEUE_OBSERVER_ALLOWED_ORIGINS", "http://a.example, ,http://b.example")
	t.Setenv("KUEUE_OBSERVER_ID", "observer-1")
	t.Setenv("KUEUE_OBSERVER_LOG_LEVEL", "debug")
	t.Setenv("KUEUE_OBSERVER_DEBUG_ENDPOINTS", "true")

	cfg := Load()

	if cfg.APIURL != "http://127.0.0.1:8001" {
		t.Errorf("APIURL = %q, want trailing slash trimmed", cfg.APIURL)
	}
	if cfg.VisibilityGroupVersion != "visibility.kueue.x-k8s.io/v1beta2" {
		t.Errorf("VisibilityGroupVersion = %q", cfg.VisibilityGroupVersion)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", cfg.PollInterval)
	}
	if cfg.RefreshInterval != 500*time.Millisecond {
		t.Errorf("RefreshInterval = %v, want 500ms", cfg.RefreshInterval)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries = %d, want 0", cfg.MaxRetries)
	}
	if cfg.SubmitterLabel != "example.com/owner" {
		t.Errorf("SubmitterLabel = %q", cfg.SubmitterLabel)
	}
	if cfg.ServerPort != 9000 {
		t.Errorf("ServerPort = %d, want 9000", cfg.ServerPort)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[0] != "http://a.example" || cfg.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.AllowedOrigins)
	}
	if cfg.ObserverID != "observer-1" {
		t.Errorf("ObserverID = %q, want observer-1", cfg.ObserverID)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel = %v, want DEBUG", cfg.LogLevel)
	}
	if !cfg.DebugEndpoints {
		t.Error("DebugEndpoints = false, want true")
	}
}

func TestLoad_DurationParsing(t *testing.T) {
	clearEnv(t)

	// Plain integer is treated as seconds
	t.Setenv("KUEUE_OBSERVER_DETAIL_RETRY_INTERVAL", "30")
	cfg := Load()
	if cfg.DetailRetryInterval != 30*time.Second {
		t.Errorf("DetailRetryInterval with '30' = %v, want 30s", cfg.DetailRetryInterval)
	}

	// Garbage falls back to the default
	t.Setenv("KUEUE_OBSERVER_DETAIL_RETRY_INTERVAL", "soon")
	cfg = Load()
	if cfg.DetailRetryInterval != 10*time.Second {
		t.Errorf("DetailRetryInterval with 'soon' = %v, want 10s", cfg.DetailRetryInterval)
	}
}

func TestLoad_BadLogLevel(t *testing.T) {
	clearEnv(t)
	t.Setenv("KUEUE_OBSERVER_LOG_LEVEL", "loud")

	if cfg := Load(); cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO fallback", cfg.LogLevel)
	}
}

func TestValidate_Valid(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected no error for default config, got: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	clearEnv(t)
	base := Load()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"api url without scheme", func(c *Config) { c.APIURL = "localhost:8001" }},
		{"api url ftp", func(c *Config) { c.APIURL = "ftp://host" }},
		{"empty queue group version", func(c *Config) { c.QueueGroupVersion = "" }},
		{"queue group version without version", func(c *Config) { c.QueueGroupVersion = "kueue.x-k8s.io" }},
		{"malformed visibility version", func(c *Config) { c.VisibilityGroupVersion = "/v1beta1" }},
		{"poll interval too low", func(c *Config) { c.PollInterval = 10 * time.Millisecond }},
		{"refresh interval too low", func(c *Config) { c.RefreshInterval = 0 }},
		{"zero request timeout", func(c *Config) { c.RequestTimeout = 0 }},
		{"zero detail retry", func(c *Config) { c.DetailRetryInterval = 0 }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"empty submitter label", func(c *Config) { c.SubmitterLabel = "" }},
		{"health port out of range", func(c *Config) { c.HealthPort = 70000 }},
		{"server port zero", func(c *Config) { c.ServerPort = 0 }},
		{"ports collide", func(c *Config) { c.ServerPort = c.HealthPort }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestValidate_APIURLOverride(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	cfg.APIURL = "http://127.0.0.1:8001"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected kubectl proxy URL to be accepted, got: %v", err)
	}
}
