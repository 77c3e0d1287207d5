// Package llm invokes language models by "provider/model" identifier.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jimezsa/jobpilot/internal/schemas"
	"github.com/rs/zerolog"
)

const (
	ProviderAnthropic = "anthropic"
	ProviderGoogle    = "google"
	ProviderOpenAI    = "openai"
	ProviderGroq      = "groq"
)

var ErrUnsupportedProvider = errors.New("unsupported LLM provider")

// Request is one system+user exchange. Schema names a response schema from
// package schemas; empty means free text.
type Request struct {
	SystemPrompt string
	UserMessage  string
	Model        string
	Schema       string
}

// Invoker sends a request and returns the raw response text.
type Invoker interface {
	Invoke(ctx context.Context, req Request) (string, error)
}

// Call is what a Provider receives: the model name without its provider
// prefix and a system prompt that already carries any schema instructions.
type Call struct {
	Model  string
	System string
	User   string
	JSON   bool
}

type Provider interface {
	Generate(ctx context.Context, call Call) (string, error)
}

// Settings are shared by all providers.
type Settings struct {
	Temperature float32
	MaxTokens   int
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.MaxTokens <= 0 {
		s.MaxTokens = 4096
	}
	if s.MaxRetries < 0 {
		s.MaxRetries = 0
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = 2 * time.Second
	}
	return s
}

// SplitModel splits "provider/model" into its parts.
func SplitModel(model string) (string, string, error) {
	provider, name, ok := strings.Cut(strings.TrimSpace(model), "/")
	if !ok || provider == "" || name == "" {
		return "", "", fmt.Errorf("model %q must be in the form provider/model", model)
	}
	return strings.ToLower(provider), name, nil
}

// Router dispatches requests to the provider named by the model prefix.
type Router struct {
	providers    map[string]Provider
	defaultModel string
	timeout      time.Duration
	logger       zerolog.Logger
}

func NewRouter(defaultModel string, timeout time.Duration, logger zerolog.Logger) *Router {
	return &Router{
		providers:    map[string]Provider{},
		defaultModel: defaultModel,
		timeout:      timeout,
		logger:       logger,
	}
}

// Register makes p serve models prefixed with name.
func (r *Router) Register(name string, p Provider) {
	r.providers[strings.ToLower(name)] = p
}

func (r *Router) Invoke(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if strings.TrimSpace(model) == "" {
		model = r.defaultModel
	}
	providerName, name, err := SplitModel(model)
	if err != nil {
		return "", err
	}
	provider, ok := r.providers[providerName]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedProvider, providerName)
	}

	call := Call{Model: name, System: req.SystemPrompt, User: req.UserMessage}
	if req.Schema != "" {
		doc, err := schemas.Get(req.Schema)
		if err != nil {
			return "", err
		}
		call.System = withSchema(call.System, doc)
		call.JSON = true
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := provider.Generate(ctx, call)
	r.logger.Debug().
		Str("provider", providerName).
		Str("model", name).
		Str("schema", req.Schema).
		Dur("elapsed", time.Since(start)).
		Err(err).
		Msg("llm call")
	if err != nil {
		return "", fmt.Errorf("%s: %w", providerName, err)
	}
	return text, nil
}

func withSchema(system, schema string) string {
	return strings.TrimSpace(system) +
		"\n\nRespond with a single JSON object and nothing else. It must conform to this JSON Schema:\n" +
		schema
}

// retry calls fn up to maxRetries+1 times with linear backoff.
func retry(ctx context.Context, logger zerolog.Logger, name string, s Settings, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.MaxRetries; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == s.MaxRetries || ctx.Err() != nil {
			break
		}

		backoff := time.Duration(attempt+1) * s.RetryDelay
		logger.Warn().
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Err(err).
			Msgf("retrying %s API call", name)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("%s API call failed after %d retries: %w", name, s.MaxRetries, err)
}
