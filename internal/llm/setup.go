package llm

import (
	"context"
	"time"

	"github.com/jimezsa/jobpilot/internal/config"
	"github.com/rs/zerolog"
)

// FromConfig builds a Router with every supported provider. A provider whose
// key is missing is still registered so the error names the missing key.
func FromConfig(ctx context.Context, cfg config.Config, logger zerolog.Logger) *Router {
	settings := Settings{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		MaxRetries:  cfg.LLM.MaxRetries,
	}
	router := NewRouter(cfg.Model, settings.Timeout, logger)

	if p, err := NewAnthropic(cfg.LLM.AnthropicAPIKey, settings, logger); err != nil {
		router.Register(ProviderAnthropic, unavailable{err: err})
	} else {
		router.Register(ProviderAnthropic, p)
	}

	if p, err := NewGemini(ctx, cfg.LLM.GeminiAPIKey, settings, logger); err != nil {
		router.Register(ProviderGoogle, unavailable{err: err})
	} else {
		router.Register(ProviderGoogle, p)
	}

	if p, err := NewOpenAI(cfg.LLM.OpenAIAPIKey, settings, logger); err != nil {
		router.Register(ProviderOpenAI, unavailable{err: err})
	} else {
		router.Register(ProviderOpenAI, p)
	}

	if p, err := NewGroq(cfg.LLM.GroqAPIKey, settings, logger); err != nil {
		router.Register(ProviderGroq, unavailable{err: err})
	} else {
		router.Register(ProviderGroq, p)
	}
	return router
}

type unavailable struct{ err error }

func (u unavailable) Generate(context.Context, Call) (string, error) { return "", u.err }
