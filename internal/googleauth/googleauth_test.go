package googleauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func TestTokenSource(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/keys/bad.json", []byte("{not json"), 0600))

	tests := []struct {
		name    string
		creds   Credentials
		wantErr error
		errText string
	}{
		{name: "refresh token", creds: Credentials{ClientID: "id", ClientSecret: "secret", RefreshToken: "r"}},
		{name: "nothing configured", creds: Credentials{}, wantErr: ErrNoCredentials},
		{name: "partial oauth", creds: Credentials{ClientID: "id", RefreshToken: "r"}, wantErr: ErrNoCredentials},
		{name: "missing key file", creds: Credentials{ServiceAccountPath: "/keys/none.json"}, errText: "unable to read"},
		{name: "malformed key file", creds: Credentials{ServiceAccountPath: "/keys/bad.json"}, errText: "unable to parse"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := TokenSource(context.Background(), fs, tt.creds, "scope")
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errText != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errText)
			default:
				require.NoError(t, err)
				assert.NotNil(t, ts)
			}
		})
	}
}

func TestSaveAndLoadToken(t *testing.T) {
	fs := afero.NewMemMapFs()
	tok := &oauth2.Token{AccessToken: "a", RefreshToken: "r", TokenType: "Bearer"}

	require.NoError(t, SaveToken(fs, "/home/u/.config/bates/google-token.json", tok))
	info, err := fs.Stat("/home/u/.config/bates/google-token.json")
	require.NoError(t, err)
	assert.Equal(t, "-rw-------", info.Mode().Perm().String())

	loaded, err := LoadToken(fs, "/home/u/.config/bates/google-token.json")
	require.NoError(t, err)
	assert.Equal(t, "r", loaded.RefreshToken)

	_, err = LoadToken(fs, "/missing.json")
	assert.Error(t, err)
}

func TestAuthorize(t *testing.T) {
	tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.Form.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"a","refresh_token":"fresh","token_type":"Bearer","expires_in":3600}`))
	}))
	defer tokenServer.Close()

	cfg := ConsentConfig{
		Endpoint:     oauth2.Endpoint{AuthURL: "https://accounts.example.com/auth", TokenURL: tokenServer.URL},
		ClientID:     "id",
		ClientSecret: "secret",
		Addr:         "127.0.0.1:0",
		Scopes:       []string{"scope-a"},
		Timeout:      5 * time.Second,
	}

	browser := func(consentURL string) {
		u, err := url.Parse(consentURL)
		if !assert.NoError(t, err) {
			return
		}
		q := u.Query()
		assert.Equal(t, "offline", q.Get("access_type"))
		callback := q.Get("redirect_uri") + "?" + url.Values{"state": {q.Get("state")}, "code": {"the-code"}}.Encode()
		go func() {
			resp, err := http.Get(callback) //nolint:noctx // test browser
			if assert.NoError(t, err) {
				_ = resp.Body.Close()
			}
		}()
	}

	tok, err := Authorize(context.Background(), cfg, browser)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tok.RefreshToken)
}

func TestAuthorize_RejectsWrongState(t *testing.T) {
	cfg := ConsentConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		Addr:         "127.0.0.1:0",
		Timeout:      200 * time.Millisecond,
	}

	var status int
	browser := func(consentURL string) {
		u, _ := url.Parse(consentURL)
		callback := u.Query().Get("redirect_uri") + "?state=forged&code=x"
		resp, err := http.Get(callback) //nolint:noctx // test browser
		if assert.NoError(t, err) {
			status = resp.StatusCode
			_ = resp.Body.Close()
		}
	}

	_, err := Authorize(context.Background(), cfg, browser)
	assert.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAuthorize_RequiresClient(t *testing.T) {
	_, err := Authorize(context.Background(), ConsentConfig{}, func(string) {})
	assert.Error(t, err)
}
