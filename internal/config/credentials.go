package config

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeyringService groups the tool's secrets in the OS keychain.
const KeyringService = "jobpilot"

const (
	EnvClientID     = "UPWORK_CLIENT_ID"
	EnvClientSecret = "UPWORK_CLIENT_SECRET"
	EnvRedirectURI  = "UPWORK_REDIRECT_URI"
	EnvAccessToken  = "UPWORK_ACCESS_TOKEN"
	EnvRefreshToken = "UPWORK_REFRESH_TOKEN"
	EnvExpiresAt    = "UPWORK_EXPIRES_AT"
)

// Credentials holds the OAuth client settings and any cached token. ExpiresAt
// is kept as the raw unix timestamp string so a malformed value can be
// reported by the token manager instead of silently dropped here.
type Credentials struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	AccessToken  string
	RefreshToken string
	ExpiresAt    string
}

// LoadCredentials reads credentials once through getenv. Pass os.Getenv in
// production and a map lookup in tests.
func LoadCredentials(getenv func(string) string) Credentials {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }
	return Credentials{
		ClientID:     get(EnvClientID),
		ClientSecret: get(EnvClientSecret),
		RedirectURI:  get(EnvRedirectURI),
		AccessToken:  get(EnvAccessToken),
		RefreshToken: get(EnvRefreshToken),
		ExpiresAt:    get(EnvExpiresAt),
	}
}

// HasClient reports whether an authorization-code exchange is possible.
func (c Credentials) HasClient() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

// HasCachedToken reports whether access token, refresh token and expiry are all set.
func (c Credentials) HasCachedToken() bool {
	return c.AccessToken != "" && c.RefreshToken != "" && c.ExpiresAt != ""
}

// MissingClientVars names the client variables that are unset.
func (c Credentials) MissingClientVars() []string {
	var missing []string
	if c.ClientID == "" {
		missing = append(missing, EnvClientID)
	}
	if c.ClientSecret == "" {
		missing = append(missing, EnvClientSecret)
	}
	if c.RedirectURI == "" {
		missing = append(missing, EnvRedirectURI)
	}
	return missing
}

// WithKeyring fills any unset cached-token fields from the OS keychain.
// Keychain errors (no backend, entry missing) leave the field empty.
func (c Credentials) WithKeyring() Credentials {
	fill := func(dst *string, account string) {
		if *dst != "" {
			return
		}
		if val, err := keyring.Get(KeyringService, account); err == nil {
			*dst = strings.TrimSpace(val)
		}
	}
	fill(&c.AccessToken, EnvAccessToken)
	fill(&c.RefreshToken, EnvRefreshToken)
	fill(&c.ExpiresAt, EnvExpiresAt)
	return c
}

// SaveToken stores token values in the OS keychain.
func SaveToken(accessToken, refreshToken, expiresAt string) error {
	if strings.TrimSpace(accessToken) == "" {
		return errors.New("access token is empty")
	}
	entries := []struct{ account, value string }{
		{EnvAccessToken, accessToken},
		{EnvRefreshToken, refreshToken},
		{EnvExpiresAt, expiresAt},
	}
	for _, e := range entries {
		if strings.TrimSpace(e.value) == "" {
			continue
		}
		if err := keyring.Set(KeyringService, e.account, e.value); err != nil {
			return err
		}
	}
	return nil
}

// ClearToken removes cached token values from the OS keychain.
func ClearToken() error {
	for _, account := range []string{EnvAccessToken, EnvRefreshToken, EnvExpiresAt} {
		if err := keyring.Delete(KeyringService, account); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return err
		}
	}
	return nil
}
