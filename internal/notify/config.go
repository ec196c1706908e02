package notify

import (
	"fmt"
	"net/mail"
	"os"

	"github.com/Veraticus/bates-must-flow/internal/googleauth"
)

// Config holds the mail settings for failure notices.
type Config struct {
	Sender             string
	FallbackRecipient  string
	ServiceAccountPath string
	ClientID           string
	ClientSecret       string
	RefreshToken       string
}

// LoadFromEnv fills unset fields from GMAIL_* environment variables.
func (c *Config) LoadFromEnv() {
	set := func(field *string, env string) {
		if *field == "" {
			*field = os.Getenv(env)
		}
	}
	set(&c.Sender, "GMAIL_SENDER")
	set(&c.FallbackRecipient, "GMAIL_FALLBACK_RECIPIENT")
	set(&c.ServiceAccountPath, "GMAIL_SERVICE_ACCOUNT_PATH")
	set(&c.ClientID, "GMAIL_CLIENT_ID")
	set(&c.ClientSecret, "GMAIL_CLIENT_SECRET")
	set(&c.RefreshToken, "GMAIL_REFRESH_TOKEN")
}

// Credentials returns the Google credentials for sending as Sender.
func (c Config) Credentials() googleauth.Credentials {
	return googleauth.Credentials{
		ServiceAccountPath: c.ServiceAccountPath,
		Subject:            c.Sender,
		ClientID:           c.ClientID,
		ClientSecret:       c.ClientSecret,
		RefreshToken:       c.RefreshToken,
	}
}

// HasCredentials reports whether Gmail delivery is configured.
func (c Config) HasCredentials() bool {
	return c.ServiceAccountPath != "" || (c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != "")
}

// Validate checks the configuration for Gmail delivery.
func (c Config) Validate() error {
	hasOAuth := c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
	hasServiceAccount := c.ServiceAccountPath != ""

	if !hasOAuth && !hasServiceAccount {
		return fmt.Errorf("no authentication method configured")
	}
	if hasOAuth && hasServiceAccount {
		return fmt.Errorf("multiple authentication methods configured; use either OAuth2 or service account")
	}
	if c.Sender == "" {
		return fmt.Errorf("sender address is required")
	}
	if _, err := mail.ParseAddress(c.Sender); err != nil {
		return fmt.Errorf("invalid sender address %q: %w", c.Sender, err)
	}
	if c.FallbackRecipient != "" {
		if _, err := mail.ParseAddress(c.FallbackRecipient); err != nil {
			return fmt.Errorf("invalid fallback recipient %q: %w", c.FallbackRecipient, err)
		}
	}
	return nil
}
