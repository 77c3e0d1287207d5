package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/jimezsa/jobpilot/internal/config"
)

type ConfigCmd struct {
	Init InitConfigCmd `cmd:"" help:"Write default config and proxies files."`
	Path PathConfigCmd `cmd:"" help:"Print config directory."`
	Show ShowConfigCmd `cmd:"" help:"Print the effective configuration."`
}

type InitConfigCmd struct{}

type PathConfigCmd struct{}

type ShowConfigCmd struct{}

func (c *InitConfigCmd) Run(ctx *Context) error {
	paths, err := config.Init()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		ctx.UI.Infof("Config already initialized at %s", ctx.ConfigDir)
		return nil
	}
	ctx.UI.Infof("Created: %s", strings.Join(paths, ", "))
	return nil
}

func (c *PathConfigCmd) Run(ctx *Context) error {
	_, err := fmt.Fprintln(ctx.Out, ctx.ConfigDir)
	return err
}

// Run prints the merged defaults, file and environment. API keys are never
// printed; only whether they are set.
func (c *ShowConfigCmd) Run(ctx *Context) error {
	cfg := ctx.Config
	if u, err := url.Parse(cfg.Dedup.RedisURL); err == nil && cfg.Dedup.RedisURL != "" {
		cfg.Dedup.RedisURL = u.Redacted()
	}
	view := struct {
		config.Config
		AnthropicKeySet bool   `json:"anthropic_api_key_set"`
		GeminiKeySet    bool   `json:"gemini_api_key_set"`
		OpenAIKeySet    bool   `json:"openai_api_key_set"`
		GroqKeySet      bool   `json:"groq_api_key_set"`
		DedupLocation   string `json:"dedup_location"`
	}{
		Config:          cfg,
		AnthropicKeySet: ctx.Config.LLM.AnthropicAPIKey != "",
		GeminiKeySet:    ctx.Config.LLM.GeminiAPIKey != "",
		OpenAIKeySet:    ctx.Config.LLM.OpenAIAPIKey != "",
		GroqKeySet:      ctx.Config.LLM.GroqAPIKey != "",
		DedupLocation:   ctx.Config.DedupPath(ctx.ConfigDir),
	}
	enc := json.NewEncoder(ctx.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(view)
}
