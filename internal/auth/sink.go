package auth

import (
	"strconv"

	"github.com/jimezsa/jobpilot/internal/config"
	"github.com/jimezsa/jobpilot/internal/ui"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

// TokenSink receives every newly issued or silently refreshed token so the
// caller can persist it.
type TokenSink interface {
	TokensIssued(tok *oauth2.Token, refreshed bool)
}

// EnvLines renders a token as the environment assignments that reuse it.
func EnvLines(tok *oauth2.Token) []string {
	lines := []string{config.EnvAccessToken + "=\"" + tok.AccessToken + "\""}
	if tok.RefreshToken != "" {
		lines = append(lines, config.EnvRefreshToken+"=\""+tok.RefreshToken+"\"")
	}
	if exp := ExpiresAtString(tok); exp != "" {
		lines = append(lines, config.EnvExpiresAt+"=\""+exp+"\"")
	}
	return lines
}

// ExpiresAtString formats the token expiry as a unix timestamp, or "" when unset.
func ExpiresAtString(tok *oauth2.Token) string {
	if tok == nil || tok.Expiry.IsZero() {
		return ""
	}
	return strconv.FormatInt(tok.Expiry.Unix(), 10)
}

// NoticeSink prints token values loudly for the operator to save.
type NoticeSink struct {
	UI *ui.UI
}

func (s *NoticeSink) TokensIssued(tok *oauth2.Token, refreshed bool) {
	if s.UI == nil || tok == nil {
		return
	}
	if refreshed {
		s.UI.Noticef("\n--- Upwork API Token Updated ---")
		s.UI.Noticef("The access token was refreshed. Update your .env file with:")
	} else {
		s.UI.Noticef("\n--- OAuth Successful! ---")
		s.UI.Noticef("Save these tokens in your .env file to skip authorization next time:")
	}
	for _, line := range EnvLines(tok) {
		s.UI.Noticef("%s", line)
	}
	s.UI.Noticef("--------------------------------")
}

// KeyringSink stores tokens in the OS keychain, then forwards to Next.
type KeyringSink struct {
	Next   TokenSink
	Logger zerolog.Logger
	// Save defaults to config.SaveToken.
	Save func(accessToken, refreshToken, expiresAt string) error
}

func (s *KeyringSink) TokensIssued(tok *oauth2.Token, refreshed bool) {
	if tok == nil {
		return
	}
	save := s.Save
	if save == nil {
		save = config.SaveToken
	}
	if err := save(tok.AccessToken, tok.RefreshToken, ExpiresAtString(tok)); err != nil {
		s.Logger.Warn().Err(err).Msg("could not save tokens to keychain")
	} else {
		s.Logger.Info().Bool("refreshed", refreshed).Msg("tokens saved to keychain")
	}
	if s.Next != nil {
		s.Next.TokensIssued(tok, refreshed)
	}
}
