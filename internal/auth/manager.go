package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jimezsa/jobpilot/internal/config"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

type State string

const (
	StateNoCredentials  State = "NO_CREDENTIALS"
	StateHasCachedToken State = "HAS_CACHED_TOKEN"
	StateValidating     State = "VALIDATING"
	StateAuthorized     State = "AUTHORIZED"
	StateOAuthPending   State = "OAUTH_PENDING"
	StateFailed         State = "FAILED"
)

// Prober performs a lightweight authenticated call to check a token source.
type Prober interface {
	Probe(ctx context.Context, ts oauth2.TokenSource) error
}

// AuthorizationPrompt asks the operator to authorize in a browser and returns
// the redirected callback URL. It returns ErrPromptCancelled when the
// operator gives up or enters nothing.
type AuthorizationPrompt interface {
	ObtainCallbackURL(ctx context.Context, authorizationURL string) (string, error)
}

type Option func(*Manager)

func WithPrompt(p AuthorizationPrompt) Option {
	return func(m *Manager) { m.prompt = p }
}

func WithSink(s TokenSink) Option {
	return func(m *Manager) { m.sink = s }
}

func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithEndpoint overrides the authorization and token URLs.
func WithEndpoint(authURL, tokenURL string) Option {
	return func(m *Manager) {
		m.oauth.Endpoint.AuthURL = authURL
		m.oauth.Endpoint.TokenURL = tokenURL
	}
}

// WithHTTPClient sets the client used for token exchange and refresh.
func WithHTTPClient(c *http.Client) Option {
	return func(m *Manager) { m.httpClient = c }
}

// Manager owns the OAuth token lifecycle for one process.
type Manager struct {
	creds      config.Credentials
	oauth      *oauth2.Config
	prober     Prober
	prompt     AuthorizationPrompt
	sink       TokenSink
	httpClient *http.Client
	logger     zerolog.Logger
	now        func() time.Time

	mu    sync.Mutex
	state State
}

func NewManager(creds config.Credentials, prober Prober, opts ...Option) *Manager {
	endpoints := config.DefaultConfig().Upwork
	m := &Manager{
		creds:  creds,
		prober: prober,
		oauth: &oauth2.Config{
			ClientID:     creds.ClientID,
			ClientSecret: creds.ClientSecret,
			RedirectURL:  creds.RedirectURI,
			Endpoint: oauth2.Endpoint{
				AuthURL:   endpoints.AuthURL,
				TokenURL:  endpoints.TokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	if creds.HasCachedToken() {
		m.state = StateHasCachedToken
	} else {
		m.state = StateNoCredentials
	}
	return m
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) transition(next State) {
	m.mu.Lock()
	prev := m.state
	m.state = next
	m.mu.Unlock()
	m.logger.Debug().Str("from", string(prev)).Str("state", string(next)).Msg("token manager transition")
}

// Authorize drives the state machine to AUTHORIZED or FAILED. On failure the
// error is always a *ConfigurationError.
func (m *Manager) Authorize(ctx context.Context) (*Session, error) {
	m.logger.Debug().Str("state", string(m.State())).Msg("token manager start")

	var cause error
	if m.State() == StateHasCachedToken {
		sess, err := m.validateCached(ctx)
		if err == nil {
			m.transition(StateAuthorized)
			return sess, nil
		}
		cause = err
		m.transition(StateOAuthPending)
	} else {
		m.logger.Info().Msg("no cached Upwork tokens found")
	}

	if !m.creds.HasClient() {
		return nil, m.fail(errors.Join(cause, fmt.Errorf("oauth client settings incomplete")))
	}

	if m.State() != StateOAuthPending {
		m.transition(StateOAuthPending)
	}
	tok, err := m.runAuthorizationCode(ctx)
	if err != nil {
		return nil, m.fail(errors.Join(cause, err))
	}

	if m.sink != nil {
		m.sink.TokensIssued(tok, false)
	}
	m.transition(StateAuthorized)
	return m.session(tok), nil
}

func (m *Manager) fail(err error) error {
	m.transition(StateFailed)
	m.logger.Error().Err(err).Str("state", string(StateFailed)).Msg("authorization failed")
	return &ConfigurationError{Missing: m.creds.MissingClientVars(), Err: err}
}

func (m *Manager) validateCached(ctx context.Context) (*Session, error) {
	tok, err := m.cachedToken()
	if err != nil {
		m.logger.Error().Err(err).Msg("cached token discarded")
		return nil, err
	}

	m.transition(StateValidating)
	if !m.now().Before(tok.Expiry.Add(-ExpiryBuffer)) {
		m.logger.Info().Time("expires_at", tok.Expiry).Msg("cached token expired or nearing expiry, refreshing before use")
	}

	sess := m.session(tok)
	if m.prober == nil {
		return nil, errors.New("no prober configured to validate cached token")
	}
	if err := m.prober.Probe(ctx, sess); err != nil {
		m.logger.Warn().Err(err).Msg("cached token failed validation")
		return nil, fmt.Errorf("cached token rejected: %w", err)
	}
	m.logger.Info().Msg("cached Upwork token validated")
	return sess, nil
}

func (m *Manager) cachedToken() (*oauth2.Token, error) {
	expires, err := strconv.ParseFloat(m.creds.ExpiresAt, 64)
	if err != nil {
		return nil, fmt.Errorf("%s value %q is not a valid unix timestamp", config.EnvExpiresAt, m.creds.ExpiresAt)
	}
	sec := int64(expires)
	nsec := int64((expires - float64(sec)) * float64(time.Second))
	return &oauth2.Token{
		AccessToken:  m.creds.AccessToken,
		RefreshToken: m.creds.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       time.Unix(sec, nsec),
	}, nil
}

func (m *Manager) session(tok *oauth2.Token) *Session {
	ref := &refresher{ctx: m.tokenContext(), conf: m.oauth, refreshToken: tok.RefreshToken}
	return newSession(oauth2.ReuseTokenSourceWithExpiry(tok, ref, ExpiryBuffer), tok, m.sink)
}

// tokenContext is detached from the caller so a session outlives the command
// context that created it.
func (m *Manager) tokenContext() context.Context {
	ctx := context.Background()
	if m.httpClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	}
	return ctx
}

func (m *Manager) runAuthorizationCode(ctx context.Context) (*oauth2.Token, error) {
	if m.prompt == nil {
		return nil, errors.New("no authorization prompt available")
	}

	state := uuid.NewString()
	authURL := m.oauth.AuthCodeURL(state)

	callback, err := m.prompt.ObtainCallbackURL(ctx, authURL)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(callback) == "" {
		return nil, ErrPromptCancelled
	}

	code, err := parseCallback(callback, state)
	if err != nil {
		return nil, err
	}

	m.logger.Info().Msg("authorization code obtained, requesting access token")
	exCtx := ctx
	if m.httpClient != nil {
		exCtx = context.WithValue(ctx, oauth2.HTTPClient, m.httpClient)
	}
	tok, err := m.oauth.Exchange(exCtx, code)
	if err != nil {
		return nil, fmt.Errorf("token exchange: %w", err)
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	return tok, nil
}

// parseCallback extracts the authorization code from a redirected URL. A
// bare code is accepted too.
func parseCallback(raw, wantState string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || (u.RawQuery == "" && u.Scheme == "") {
		if err == nil && !strings.ContainsAny(raw, "/?=&") {
			return raw, nil
		}
		return "", fmt.Errorf("invalid callback URL %q", raw)
	}

	q := u.Query()
	if e := q.Get("error"); e != "" {
		desc := q.Get("error_description")
		if desc != "" {
			return "", fmt.Errorf("%w: %s (%s)", ErrAuthorizationDenied, e, desc)
		}
		return "", fmt.Errorf("%w: %s", ErrAuthorizationDenied, e)
	}
	if st := q.Get("state"); st != "" && st != wantState {
		return "", ErrStateMismatch
	}
	code := q.Get("code")
	if code == "" {
		return "", ErrMissingCode
	}
	return code, nil
}
