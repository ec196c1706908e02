package box

import (
	"time"

	"github.com/Veraticus/bates-must-flow/internal/common"
)

// Config holds Box API settings.
type Config struct {
	BaseURL      string
	TokenURL     string
	ClientID     string
	ClientSecret string
	EnterpriseID string
	// RequestsPerSecond paces outgoing calls; zero disables pacing.
	RequestsPerSecond float64
	Timeout           time.Duration

	// MaxAttempts bounds tries for reads that fail with 429 or 5xx.
	MaxAttempts   int
	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
}

// DefaultConfig returns settings for the public Box API.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "https://api.box.com/2.0",
		TokenURL:          "https://api.box.com/oauth2/token",
		RequestsPerSecond: 10,
		Timeout:           60 * time.Second,
		MaxAttempts:       3,
		RetryDelay:        500 * time.Millisecond,
		MaxRetryDelay:     30 * time.Second,
	}
}

// HasServiceCredentials reports whether a client credentials grant can be made.
func (c Config) HasServiceCredentials() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.EnterpriseID != ""
}

// Validate checks that the configuration is usable.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return common.ConfigError("box.base_url", "must not be empty")
	}
	if c.MaxAttempts < 1 {
		return common.ConfigError("box.max_attempts", "must be at least 1, got %d", c.MaxAttempts)
	}
	if c.RequestsPerSecond < 0 {
		return common.ConfigError("box.requests_per_second", "must not be negative")
	}
	set := 0
	for _, v := range []string{c.ClientID, c.ClientSecret, c.EnterpriseID} {
		if v != "" {
			set++
		}
	}
	if set != 0 && set != 3 {
		return common.ConfigError("box", "client_id, client_secret and enterprise_id must be set together")
	}
	if set == 3 && c.TokenURL == "" {
		return common.ConfigError("box.token_url", "must not be empty")
	}
	return nil
}
