package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// validateOrigin validates and sanitizes a CORS origin URL.
func validateOrigin(origin string) (string, bool) {
	// Wildcard is only allowed outside release mode.
	if origin == "*" {
		return origin, gin.Mode() != gin.ReleaseMode
	}

	u, err := url.Parse(origin)
	if err != nil {
		return "", false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}

	if u.Hostname() == "" {
		return "", false
	}

	// Only include scheme and host (which includes port if specified)
	return fmt.Sprintf("%s://%s", u.Scheme, u.Host), true
}

// cleanOrigins validates origins, dropping and logging invalid ones. With no
// origins configured, development mode allows any origin.
func cleanOrigins(origins []string) []string {
	var allowed []string
	for _, origin := range origins {
		origin = strings.TrimSpace(origin)
		if clean, ok := validateOrigin(origin); ok {
			allowed = append(allowed, clean)
		} else {
			slog.Warn("invalid origin rejected", "origin", origin)
		}
	}
	if len(origins) == 0 && gin.Mode() != gin.ReleaseMode {
		allowed = append(allowed, "*")
		slog.Info("KUEUE_OBSERVER_ALLOWED_ORIGINS not set, allowing any origin in development mode")
	}
	return allowed
}

// ConfigureCORS builds the read-only CORS policy for origins already
// passed through cleanOrigins.
func ConfigureCORS(allowed []string) (cors.Config, error) {
	config := cors.DefaultConfig()
	if len(allowed) == 0 {
		return config, errors.New("no valid CORS origins configured")
	}

	if slices.Contains(allowed, "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = allowed
	}
	config.AllowMethods = []string{"GET", "HEAD", "OPTIONS"}
	config.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization"}
	config.AllowCredentials = false

	if gin.Mode() == gin.ReleaseMode {
		config.MaxAge = 12 * time.Hour
	} else {
		config.MaxAge = 5 * time.Minute
	}
	return config, nil
}

// originChecker returns a websocket origin check for cleaned origins.
// Requests without an Origin header (non-browser clients) are allowed.
func originChecker(allowed []string) func(origin string) bool {
	allowAll := slices.Contains(allowed, "*")
	return func(origin string) bool {
		if origin == "" || allowAll {
			return true
		}
		clean, ok := validateOrigin(origin)
		return ok && slices.Contains(allowed, clean)
	}
}
