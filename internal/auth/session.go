package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/oauth2"
)

// ExpiryBuffer is how long before expiry a token is treated as stale.
const ExpiryBuffer = 5 * time.Minute

// Session is an authorized token source. Every token it hands out is compared
// with the last one observed; a changed access token is reported to the sink
// and kept until TakeRefreshed collects it.
type Session struct {
	src  oauth2.TokenSource
	sink TokenSink

	mu         sync.Mutex
	lastAccess string
	refreshed  *oauth2.Token
}

func newSession(src oauth2.TokenSource, initial *oauth2.Token, sink TokenSink) *Session {
	s := &Session{src: src, sink: sink}
	if initial != nil {
		s.lastAccess = initial.AccessToken
	}
	return s
}

// Token implements oauth2.TokenSource.
func (s *Session) Token() (*oauth2.Token, error) {
	tok, err := s.src.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	changed := tok.AccessToken != s.lastAccess
	if changed {
		s.lastAccess = tok.AccessToken
		s.refreshed = tok
	}
	s.mu.Unlock()

	if changed && s.sink != nil {
		s.sink.TokensIssued(tok, true)
	}
	return tok, nil
}

// TakeRefreshed returns the token obtained by a silent refresh since the last
// call, or nil.
func (s *Session) TakeRefreshed() *oauth2.Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok := s.refreshed
	s.refreshed = nil
	return tok
}

// refresher exchanges the current refresh token for a new access token each
// time it is asked. oauth2.ReuseTokenSourceWithExpiry decides when to ask.
type refresher struct {
	ctx  context.Context
	conf *oauth2.Config

	mu           sync.Mutex
	refreshToken string
}

func (r *refresher) Token() (*oauth2.Token, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	tok, err := r.conf.TokenSource(r.ctx, &oauth2.Token{RefreshToken: r.refreshToken}).Token()
	if err != nil {
		return nil, err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = r.refreshToken
	}
	r.refreshToken = tok.RefreshToken
	return tok, nil
}
