package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog"
)

// Anthropic calls the Messages API.
type Anthropic struct {
	client   anthropic.Client
	settings Settings
	logger   zerolog.Logger
}

func NewAnthropic(apiKey string, settings Settings, logger zerolog.Logger, opts ...option.RequestOption) (*Anthropic, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is not set")
	}
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &Anthropic{
		client:   anthropic.NewClient(opts...),
		settings: settings.withDefaults(),
		logger:   logger,
	}, nil
}

func (a *Anthropic) Generate(ctx context.Context, call Call) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(call.Model),
		MaxTokens: int64(a.settings.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(call.User)),
		},
	}
	if a.settings.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(a.settings.Temperature))
	}
	if call.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: call.System}}
	}

	var resp *anthropic.Message
	err := retry(ctx, a.logger, "Anthropic", a.settings, func() error {
		var err error
		resp, err = a.client.Messages.New(ctx, params)
		return err
	})
	if err != nil {
		return "", err
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", errors.New("empty response from Anthropic API")
	}
	return text.String(), nil
}
