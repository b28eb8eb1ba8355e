package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Validate checks that the Config contains valid values.
// Returns an error describing the first invalid field found.
func (c Config) Validate() error {
	if c.APIURL != "" {
		u, err := url.Parse(c.APIURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("config: KUEUE_OBSERVER_API_URL must be an http(s) URL, got %q", c.APIURL)
		}
	}

	if err := validateGroupVersion("KUEUE_OBSERVER_QUEUE_GROUP_VERSION", c.QueueGroupVersion, true); err != nil {
		return err
	}
	if err := validateGroupVersion("KUEUE_OBSERVER_VISIBILITY_GROUP_VERSION", c.VisibilityGroupVersion, false); err != nil {
		return err
	}

	if c.PollInterval < 100*time.Millisecond {
		return fmt.Errorf("config: PollInterval must be >= 100ms, got %v", c.PollInterval)
	}

	if c.RefreshInterval < 100*time.Millisecond {
		return fmt.Errorf("config: RefreshInterval must be >= 100ms, got %v", c.RefreshInterval)
	}

	if c.RequestTimeout <= 0 {
		return fmt.Errorf("config: RequestTimeout must be > 0, got %v", c.RequestTimeout)
	}

	if c.DetailRetryInterval <= 0 {
		return fmt.Errorf("config: DetailRetryInterval must be > 0, got %v", c.DetailRetryInterval)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("config: MaxRetries must be >= 0, got %d", c.MaxRetries)
	}

	if c.SubmitterLabel == "" {
		return fmt.Errorf("config: KUEUE_OBSERVER_SUBMITTER_LABEL must not be empty")
	}

	if c.HealthPort < 1 || c.HealthPort > 65535 {
		return fmt.Errorf("config: HealthPort must be 1-65535, got %d", c.HealthPort)
	}

	if c.ServerPort < 1 || c.ServerPort > 65535 {
		return fmt.Errorf("config: ServerPort must be 1-65535, got %d", c.ServerPort)
	}

	if c.ServerPort == c.HealthPort {
		return fmt.Errorf("config: ServerPort and HealthPort must differ, both are %d", c.ServerPort)
	}

	return nil
}

// validateGroupVersion expects "<group>/<version>".
func validateGroupVersion(key, gv string, required bool) error {
	if gv == "" {
		if required {
			return fmt.Errorf("config: %s is required", key)
		}
		return nil
	}
	parts := strings.Split(gv, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("config: %s must be <group>/<version>, got %q", key, gv)
	}
	return nil
}
