package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config holds all observer configuration values.
type Config struct {
	// APIURL overrides the API server address from kubeconfig, e.g. a
	// "kubectl proxy" endpoint. Empty means use kubeconfig / in-cluster config.
	APIURL     string
	Kubeconfig string

	QueueGroupVersion      string // KUEUE_OBSERVER_QUEUE_GROUP_VERSION, default: kueue.x-k8s.io/v1beta1
	VisibilityGroupVersion string // KUEUE_OBSERVER_VISIBILITY_GROUP_VERSION, default: "" (discover)

	PollInterval        time.Duration
	RefreshInterval     time.Duration
	DetailRetryInterval time.Duration
	RequestTimeout      time.Duration
	InitialSyncTimeout  time.Duration
	MaxRetries          int

	SubmitterLabel string

	HealthPort     int
	ServerPort     int
	AllowedOrigins []string

	ObserverID      string
	ObserverVersion string
	LogLevel        slog.Level

	DebugEndpoints bool // KUEUE_OBSERVER_DEBUG_ENDPOINTS, default: false; enables pprof/debug on health port
}

// Load reads configuration from environment variables and returns a Config
// with defaults applied for any unset values.
func Load() Config {
	cfg := Config{
		APIURL:                 strings.TrimRight(os.Getenv("KUEUE_OBSERVER_API_URL"), "/"),
		Kubeconfig:             os.Getenv("KUBECONFIG"),
		QueueGroupVersion:      envOrDefault("KUEUE_OBSERVER_QUEUE_GROUP_VERSION", "kueue.x-k8s.io/v1beta1"),
		VisibilityGroupVersion: os.Getenv("KUEUE_OBSERVER_VISIBILITY_GROUP_VERSION"),
		PollInterval:           parseDuration("KUEUE_OBSERVER_POLL_INTERVAL", time.Second),
		RefreshInterval:        parseDuration("KUEUE_OBSERVER_REFRESH_INTERVAL", time.Second),
		DetailRetryInterval:    parseDuration("KUEUE_OBSERVER_DETAIL_RETRY_INTERVAL", 10*time.Second),
		RequestTimeout:         parseDuration("KUEUE_OBSERVER_REQUEST_TIMEOUT", 10*time.Second),
		InitialSyncTimeout:     parseDuration("KUEUE_OBSERVER_INITIAL_SYNC_TIMEOUT", 30*time.Second),
		MaxRetries:             parseInt("KUEUE_OBSERVER_MAX_RETRIES", 2),
		SubmitterLabel:         envOrDefault("KUEUE_OBSERVER_SUBMITTER_LABEL", "x-jobby.io/submitter"),
		HealthPort:             parseInt("KUEUE_OBSERVER_HEALTH_PORT", 8080),
		ServerPort:             parseInt("KUEUE_OBSERVER_SERVER_PORT", 8090),
		AllowedOrigins:         parseStringSlice("KUEUE_OBSERVER_ALLOWED_ORIGINS"),
		ObserverID:             os.Getenv("KUEUE_OBSERVER_ID"),
		ObserverVersion:        envOrDefault("KUEUE_OBSERVER_VERSION", "dev"),
		LogLevel:               parseLevel("KUEUE_OBSERVER_LOG_LEVEL", slog.LevelInfo),
	}

	if cfg.ObserverID == "" {
		cfg.ObserverID = uuid.New().String()
	}

	cfg.DebugEndpoints = parseBool("KUEUE_OBSERVER_DEBUG_ENDPOINTS", false)

	return cfg
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// parseDuration tries time.ParseDuration first, then falls back to treating
// the value as integer seconds.
func parseDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(v)
	if err == nil {
		return d
	}

	// Fallback: treat as integer seconds
	secs, err := strconv.Atoi(v)
	if err == nil {
		return time.Duration(secs) * time.Second
	}

	return defaultVal
}

func parseBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func parseInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func parseStringSlice(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var result []string
	for _, s := range strings.Split(v, ",") {
		s = strings.TrimSpace(s)
		if s != "" {
			result = append(result, s)
		}
	}
	return result
}

// parseLevel accepts slog level names ("debug", "info", "warn", "error").
func parseLevel(key string, defaultVal slog.Level) slog.Level {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(v)); err != nil {
		return defaultVal
	}
	return l
}
