package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"google.golang.org/genai"
)

// Gemini calls the Gemini API through the genai SDK.
type Gemini struct {
	client   *genai.Client
	settings Settings
	logger   zerolog.Logger
}

func NewGemini(ctx context.Context, apiKey string, settings Settings, logger zerolog.Logger) (*Gemini, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is not set")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Gemini{client: client, settings: settings.withDefaults(), logger: logger}, nil
}

func (g *Gemini) Generate(ctx context.Context, call Call) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(g.settings.Temperature),
		MaxOutputTokens: int32(g.settings.MaxTokens),
	}
	if call.System != "" {
		config.SystemInstruction = genai.NewContentFromText(call.System, genai.RoleUser)
	}
	if call.JSON {
		config.ResponseMIMEType = "application/json"
	}
	contents := []*genai.Content{genai.NewContentFromText(call.User, genai.RoleUser)}

	var resp *genai.GenerateContentResponse
	err := retry(ctx, g.logger, "Gemini", g.settings, func() error {
		var err error
		resp, err = g.client.Models.GenerateContent(ctx, call.Model, contents, config)
		return err
	})
	if err != nil {
		return "", err
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("empty response from Gemini API")
	}
	text := resp.Text()
	if text == "" {
		return "", errors.New("empty text in Gemini response")
	}
	return text, nil
}
