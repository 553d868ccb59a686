package provider

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/robertomojr/whatsapp-backend/internal/config"
	"github.com/robertomojr/whatsapp-backend/internal/domain"
)

const (
	// systemPrompt pins the assistant's tone and locale for every reply.
	systemPrompt = "Você é um assistente curto, educado e objetivo. Responda em português do Brasil, em no máximo 4 linhas."

	// fallbackReply is returned when the provider produces empty content.
	fallbackReply = "Não entendi. Pode repetir?"

	temperature = 0.7
)

// OpenAI generates replies through the OpenAI chat-completions API. The
// conversation is always bounded: the fixed system prompt plus one user turn.
type OpenAI struct {
	client openai.Client
	model  string
	apiKey string
	logger *slog.Logger
}

func NewOpenAI(cfg config.OpenAIConfig, logger *slog.Logger) *OpenAI {
	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.APIBase != "" {
		opts = append(opts, option.WithBaseURL(cfg.APIBase))
	}
	return &OpenAI{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		apiKey: cfg.APIKey,
		logger: logger,
	}
}

// Reply sends the user text to the completion service and returns the trimmed
// generated reply, or the fallback string when the provider returns empty
// content. The API key is checked before any network I/O.
func (o *OpenAI) Reply(ctx context.Context, text string) (string, error) {
	if o.apiKey == "" {
		return "", domain.ConfigError("OPENAI_API_KEY")
	}

	completion, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(o.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		Temperature: openai.Float(temperature),
	})
	if err != nil {
		return "", fmt.Errorf("%w: chat completion: %v", domain.ErrProvider, err)
	}

	if len(completion.Choices) == 0 {
		o.logger.Warn("completion returned no choices", "model", o.model)
		return fallbackReply, nil
	}

	reply := strings.TrimSpace(completion.Choices[0].Message.Content)
	if reply == "" {
		return fallbackReply, nil
	}
	return reply, nil
}
