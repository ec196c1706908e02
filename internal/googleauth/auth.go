// Package googleauth builds Google API token sources for the Gmail and
// Sheets integrations and runs the one-time consent flow that mints a
// refresh token.
package googleauth

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/afero"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// ErrNoCredentials is returned when neither a service account nor a
// refresh token is configured.
var ErrNoCredentials = errors.New("no google credentials configured")

// Credentials select one of two ways to authenticate. A service account key
// takes precedence; Subject is the user it impersonates, if any.
type Credentials struct {
	ServiceAccountPath string
	Subject            string
	ClientID           string
	ClientSecret       string
	RefreshToken       string
}

// HasServiceAccount reports whether a key file is configured.
func (c Credentials) HasServiceAccount() bool {
	return c.ServiceAccountPath != ""
}

// HasRefreshToken reports whether OAuth2 client credentials and a refresh
// token are all configured.
func (c Credentials) HasRefreshToken() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RefreshToken != ""
}

// TokenSource returns a token source for scopes. Key files are read from fs.
func TokenSource(ctx context.Context, fs afero.Fs, creds Credentials, scopes ...string) (oauth2.TokenSource, error) {
	switch {
	case creds.HasServiceAccount():
		jsonKey, err := afero.ReadFile(fs, creds.ServiceAccountPath)
		if err != nil {
			return nil, fmt.Errorf("unable to read service account key file: %w", err)
		}
		jwtConfig, err := google.JWTConfigFromJSON(jsonKey, scopes...)
		if err != nil {
			return nil, fmt.Errorf("unable to parse service account key: %w", err)
		}
		jwtConfig.Subject = creds.Subject
		return jwtConfig.TokenSource(ctx), nil
	case creds.HasRefreshToken():
		client := &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       scopes,
		}
		return client.TokenSource(ctx, &oauth2.Token{
			RefreshToken: creds.RefreshToken,
			TokenType:    "Bearer",
		}), nil
	default:
		return nil, ErrNoCredentials
	}
}

// HTTPClient returns an authenticated client for scopes.
func HTTPClient(ctx context.Context, fs afero.Fs, creds Credentials, scopes ...string) (*http.Client, error) {
	ts, err := TokenSource(ctx, fs, creds, scopes...)
	if err != nil {
		return nil, err
	}
	return oauth2.NewClient(ctx, ts), nil
}
