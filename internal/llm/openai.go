package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/openai/openai-go"
	oaioption "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
	"github.com/rs/zerolog"
)

// GroqBaseURL is Groq's OpenAI-compatible endpoint.
const GroqBaseURL = "https://api.groq.com/openai/v1/"

// OpenAI calls the Chat Completions API. It also serves Groq through its
// OpenAI-compatible endpoint.
type OpenAI struct {
	client   openai.Client
	name     string
	settings Settings
	logger   zerolog.Logger
}

// NewOpenAI returns a provider for api.openai.com.
func NewOpenAI(apiKey string, settings Settings, logger zerolog.Logger, opts ...oaioption.RequestOption) (*OpenAI, error) {
	return newChatCompletions("OpenAI", "OPENAI_API_KEY", apiKey, settings, logger, opts...)
}

// NewGroq returns a provider for Groq.
func NewGroq(apiKey string, settings Settings, logger zerolog.Logger, opts ...oaioption.RequestOption) (*OpenAI, error) {
	opts = append([]oaioption.RequestOption{oaioption.WithBaseURL(GroqBaseURL)}, opts...)
	return newChatCompletions("Groq", "GROQ_API_KEY", apiKey, settings, logger, opts...)
}

func newChatCompletions(name, envVar, apiKey string, settings Settings, logger zerolog.Logger, opts ...oaioption.RequestOption) (*OpenAI, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New(envVar + " is not set")
	}
	// retry owns the retry policy.
	opts = append([]oaioption.RequestOption{oaioption.WithAPIKey(apiKey), oaioption.WithMaxRetries(0)}, opts...)
	return &OpenAI{
		client:   openai.NewClient(opts...),
		name:     name,
		settings: settings.withDefaults(),
		logger:   logger,
	}, nil
}

func (o *OpenAI) Generate(ctx context.Context, call Call) (string, error) {
	var messages []openai.ChatCompletionMessageParamUnion
	if call.System != "" {
		messages = append(messages, openai.SystemMessage(call.System))
	}
	messages = append(messages, openai.UserMessage(call.User))

	params := openai.ChatCompletionNewParams{
		Model:     openai.ChatModel(call.Model),
		Messages:  messages,
		MaxTokens: openai.Int(int64(o.settings.MaxTokens)),
	}
	if o.settings.Temperature > 0 {
		params.Temperature = openai.Float(float64(o.settings.Temperature))
	}
	if call.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	var resp *openai.ChatCompletion
	err := retry(ctx, o.logger, o.name, o.settings, func() error {
		var err error
		resp, err = o.client.Chat.Completions.New(ctx, params)
		return err
	})
	if err != nil {
		return "", err
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", errors.New("empty response from " + o.name + " API")
	}
	text := resp.Choices[0].Message.Content
	if text == "" {
		return "", errors.New("empty text in " + o.name + " response")
	}
	return text, nil
}
