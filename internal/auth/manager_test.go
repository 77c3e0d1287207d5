package auth

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jimezsa/jobpilot/internal/config"
	"github.com/jimezsa/jobpilot/internal/ui"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type fakeProber struct {
	calls  int
	err    error
	tokens []string
}

func (p *fakeProber) Probe(_ context.Context, ts oauth2.TokenSource) error {
	p.calls++
	tok, err := ts.Token()
	if err != nil {
		return err
	}
	p.tokens = append(p.tokens, tok.AccessToken)
	return p.err
}

type cannedPrompt struct {
	calls    int
	lastURL  string
	callback func(authURL string) string
	err      error
}

func (p *cannedPrompt) ObtainCallbackURL(_ context.Context, authURL string) (string, error) {
	p.calls++
	p.lastURL = authURL
	if p.err != nil {
		return "", p.err
	}
	return p.callback(authURL), nil
}

type recordingSink struct {
	issued    []*oauth2.Token
	refreshed []*oauth2.Token
}

func (s *recordingSink) TokensIssued(tok *oauth2.Token, refreshed bool) {
	if refreshed {
		s.refreshed = append(s.refreshed, tok)
		return
	}
	s.issued = append(s.issued, tok)
}

type tokenServer struct {
	*httptest.Server
	hits atomic.Int32
}

func newTokenServer(t *testing.T) *tokenServer {
	t.Helper()
	ts := &tokenServer{}
	ts.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ts.hits.Add(1)
		require.NoError(t, r.ParseForm())
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "authorization_code":
			if r.PostForm.Get("code") != "good-code" {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
				return
			}
			_, _ = w.Write([]byte(`{"access_token":"issued-at","refresh_token":"issued-rt","token_type":"bearer","expires_in":86400}`))
		case "refresh_token":
			_, _ = w.Write([]byte(`{"access_token":"refreshed-at","token_type":"bearer","expires_in":86400}`))
		default:
			w.WriteHeader(http.StatusBadRequest)
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

func clientCreds() config.Credentials {
	return config.Credentials{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "https://localhost/callback",
	}
}

func cachedCreds(expiry time.Time) config.Credentials {
	c := clientCreds()
	c.AccessToken = "cached-at"
	c.RefreshToken = "cached-rt"
	c.ExpiresAt = strconv.FormatInt(expiry.Unix(), 10)
	return c
}

func newTestManager(ts *tokenServer, creds config.Credentials, prober Prober, prompt AuthorizationPrompt, sink TokenSink) *Manager {
	return NewManager(creds, prober,
		WithPrompt(prompt),
		WithSink(sink),
		WithEndpoint(ts.URL+"/authorize", ts.URL+"/token"),
		WithHTTPClient(ts.Client()),
	)
}

func echoState(code string) func(string) string {
	return func(authURL string) string {
		u, _ := url.Parse(authURL)
		return "https://localhost/callback?code=" + code + "&state=" + u.Query().Get("state")
	}
}

func TestInitialState(t *testing.T) {
	m := NewManager(config.Credentials{}, nil)
	assert.Equal(t, StateNoCredentials, m.State())

	m = NewManager(cachedCreds(time.Now().Add(time.Hour)), nil)
	assert.Equal(t, StateHasCachedToken, m.State())
}

func TestAuthorizeValidCachedTokenSkipsOAuth(t *testing.T) {
	ts := newTokenServer(t)
	prober := &fakeProber{}
	prompt := &cannedPrompt{callback: echoState("good-code")}
	sink := &recordingSink{}

	m := newTestManager(ts, cachedCreds(time.Now().Add(time.Hour)), prober, prompt, sink)
	sess, err := m.Authorize(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sess)

	assert.Equal(t, StateAuthorized, m.State())
	assert.Equal(t, 1, prober.calls)
	assert.Equal(t, []string{"cached-at"}, prober.tokens)
	assert.Zero(t, prompt.calls)
	assert.Zero(t, ts.hits.Load())
	assert.Nil(t, sess.TakeRefreshed())
}

func TestAuthorizeRejectedTokenWithoutClientFails(t *testing.T) {
	ts := newTokenServer(t)
	prober := &fakeProber{err: errors.New("401 unauthorized")}
	prompt := &cannedPrompt{callback: echoState("good-code")}

	creds := cachedCreds(time.Now().Add(time.Hour))
	creds.ClientSecret = ""
	m := newTestManager(ts, creds, prober, prompt, &recordingSink{})

	sess, err := m.Authorize(context.Background())
	require.Error(t, err)
	assert.Nil(t, sess)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, []string{config.EnvClientSecret}, cfgErr.Missing)
	assert.Contains(t, err.Error(), "cached token rejected")
	assert.Equal(t, StateFailed, m.State())
	assert.Zero(t, prompt.calls)
	assert.Zero(t, ts.hits.Load())
}

func TestAuthorizeRejectedTokenFallsBackToOAuth(t *testing.T) {
	ts := newTokenServer(t)
	prober := &fakeProber{err: errors.New("revoked")}
	prompt := &cannedPrompt{callback: echoState("good-code")}
	sink := &recordingSink{}

	m := newTestManager(ts, cachedCreds(time.Now().Add(time.Hour)), prober, prompt, sink)
	sess, err := m.Authorize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, StateAuthorized, m.State())
	assert.Equal(t, 1, prompt.calls)
	require.Len(t, sink.issued, 1)
	assert.Equal(t, "issued-at", sink.issued[0].AccessToken)

	tok, err := sess.Token()
	require.NoError(t, err)
	assert.Equal(t, "issued-at", tok.AccessToken)
	assert.Nil(t, sess.TakeRefreshed())
}

func TestAuthorizeMalformedExpiryDiscardsWithoutProbe(t *testing.T) {
	ts := newTokenServer(t)
	prober := &fakeProber{}
	prompt := &cannedPrompt{callback: echoState("good-code")}

	creds := cachedCreds(time.Now())
	creds.ExpiresAt = "not-a-number"
	m := newTestManager(ts, creds, prober, prompt, &recordingSink{})

	_, err := m.Authorize(context.Background())
	require.NoError(t, err)
	assert.Zero(t, prober.calls)
	assert.Equal(t, 1, prompt.calls)
	assert.Equal(t, StateAuthorized, m.State())
}

func TestAuthorizeNoCredentialsFails(t *testing.T) {
	m := NewManager(config.Credentials{}, &fakeProber{})
	_, err := m.Authorize(context.Background())

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Len(t, cfgErr.Missing, 3)
	assert.Contains(t, err.Error(), "UPWORK_CLIENT_ID")
	assert.Contains(t, err.Error(), "OAuth authorization flow was not completed")
	assert.Equal(t, StateFailed, m.State())
}

func TestAuthorizeOAuthFailures(t *testing.T) {
	cases := []struct {
		name    string
		prompt  *cannedPrompt
		wantErr error
	}{
		{
			name:    "cancelled",
			prompt:  &cannedPrompt{err: ErrPromptCancelled},
			wantErr: ErrPromptCancelled,
		},
		{
			name:    "empty callback",
			prompt:  &cannedPrompt{callback: func(string) string { return "  " }},
			wantErr: ErrPromptCancelled,
		},
		{
			name: "denied",
			prompt: &cannedPrompt{callback: func(string) string {
				return "https://localhost/callback?error=access_denied"
			}},
			wantErr: ErrAuthorizationDenied,
		},
		{
			name: "state mismatch",
			prompt: &cannedPrompt{callback: func(string) string {
				return "https://localhost/callback?code=good-code&state=forged"
			}},
			wantErr: ErrStateMismatch,
		},
		{
			name: "no code",
			prompt: &cannedPrompt{callback: func(string) string {
				return "https://localhost/callback"
			}},
			wantErr: ErrMissingCode,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTokenServer(t)
			m := newTestManager(ts, clientCreds(), &fakeProber{}, tc.prompt, &recordingSink{})

			_, err := m.Authorize(context.Background())
			var cfgErr *ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, StateFailed, m.State())
			assert.Zero(t, ts.hits.Load())
		})
	}
}

func TestAuthorizeExchangeError(t *testing.T) {
	ts := newTokenServer(t)
	m := newTestManager(ts, clientCreds(), &fakeProber{}, &cannedPrompt{callback: echoState("bad-code")}, &recordingSink{})

	_, err := m.Authorize(context.Background())
	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Contains(t, err.Error(), "token exchange")
	assert.Equal(t, StateFailed, m.State())
}

func TestAuthorizeAuthURLCarriesClientAndState(t *testing.T) {
	ts := newTokenServer(t)
	prompt := &cannedPrompt{callback: echoState("good-code")}
	m := newTestManager(ts, clientCreds(), &fakeProber{}, prompt, &recordingSink{})

	_, err := m.Authorize(context.Background())
	require.NoError(t, err)

	u, err := url.Parse(prompt.lastURL)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u.Path, "/authorize"))
	assert.Equal(t, "client", u.Query().Get("client_id"))
	assert.Equal(t, "https://localhost/callback", u.Query().Get("redirect_uri"))
	assert.NotEmpty(t, u.Query().Get("state"))
}

func TestNearExpiryTokenIsRefreshedAndSurfaced(t *testing.T) {
	ts := newTokenServer(t)
	prober := &fakeProber{}
	sink := &recordingSink{}

	// Inside the five-minute buffer.
	m := newTestManager(ts, cachedCreds(time.Now().Add(2*time.Minute)), prober, nil, sink)
	sess, err := m.Authorize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"refreshed-at"}, prober.tokens)
	assert.EqualValues(t, 1, ts.hits.Load())

	refreshed := sess.TakeRefreshed()
	require.NotNil(t, refreshed)
	assert.Equal(t, "refreshed-at", refreshed.AccessToken)
	assert.Equal(t, "cached-rt", refreshed.RefreshToken)
	assert.Nil(t, sess.TakeRefreshed())

	require.Len(t, sink.refreshed, 1)
	assert.Empty(t, sink.issued)
}

func TestParseCallbackAcceptsBareCode(t *testing.T) {
	code, err := parseCallback("abc123", "state")
	require.NoError(t, err)
	assert.Equal(t, "abc123", code)
}

func TestTerminalPrompt(t *testing.T) {
	var out, errOut bytes.Buffer
	u := ui.New(&out, &errOut, ui.ColorNever, true)

	p := &TerminalPrompt{In: strings.NewReader("https://localhost/callback?code=x\n"), UI: u}
	got, err := p.ObtainCallbackURL(context.Background(), "https://auth.example/authorize")
	require.NoError(t, err)
	assert.Equal(t, "https://localhost/callback?code=x", got)
	assert.Contains(t, out.String(), "https://auth.example/authorize")

	p = &TerminalPrompt{In: strings.NewReader("\n"), UI: u}
	_, err = p.ObtainCallbackURL(context.Background(), "https://auth.example/authorize")
	assert.ErrorIs(t, err, ErrPromptCancelled)
}

func TestNoticeSinkPrintsEnvLines(t *testing.T) {
	var out, errOut bytes.Buffer
	s := &NoticeSink{UI: ui.New(&out, &errOut, ui.ColorNever, true)}
	s.TokensIssued(&oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Unix(1700000000, 0)}, true)

	text := errOut.String()
	assert.Contains(t, text, "Token Updated")
	assert.Contains(t, text, `UPWORK_ACCESS_TOKEN="a"`)
	assert.Contains(t, text, `UPWORK_REFRESH_TOKEN="r"`)
	assert.Contains(t, text, `UPWORK_EXPIRES_AT="1700000000"`)
}

func TestKeyringSinkSavesAndForwards(t *testing.T) {
	var saved []string
	next := &recordingSink{}
	s := &KeyringSink{
		Next: next,
		Save: func(at, rt, exp string) error {
			saved = []string{at, rt, exp}
			return nil
		},
	}
	s.TokensIssued(&oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Unix(42, 0)}, false)

	assert.Equal(t, []string{"a", "r", "42"}, saved)
	assert.Len(t, next.issued, 1)
}
