// Package openai runs inference against OpenAI compatible chat completion endpoints.
package openai

import (
	"context"
	"net/http"

	"github.com/go-go-golems/ponder/pkg/conversation"
	"github.com/go-go-golems/ponder/pkg/inference/engine"
	"github.com/go-go-golems/ponder/pkg/settings"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	go_openai "github.com/sashabaranov/go-openai"
)

var ErrNoChoices = errors.New("openai response contained no choices")

const (
	MetadataKeyModel            = "model"
	MetadataKeyFinishReason     = "finish_reason"
	MetadataKeyPromptTokens     = "prompt_tokens"
	MetadataKeyCompletionTokens = "completion_tokens"
)

// OpenAIEngine implements engine.Engine with a single non-streaming chat completion per
// call.
type OpenAIEngine struct {
	client *go_openai.Client
	chat   settings.ChatSettings
}

var _ engine.Engine = (*OpenAIEngine)(nil)

func NewOpenAIEngine(s *settings.Settings) (*OpenAIEngine, error) {
	if s == nil {
		return nil, errors.New("settings cannot be nil")
	}
	client, err := MakeClient(s.Client, s.Chat.ApiType)
	if err != nil {
		return nil, err
	}
	return &OpenAIEngine{
		client: client,
		chat:   s.Chat.Clone(),
	}, nil
}

// MakeClient configures a go-openai client from the client settings. Ollama gets its
// default local base url and a placeholder key when none is configured.
func MakeClient(c settings.ClientSettings, apiType settings.ApiType) (*go_openai.Client, error) {
	apiKey := c.APIKey
	baseURL := c.BaseURL

	switch apiType {
	case "", settings.ApiTypeOpenAI:
		if apiKey == "" {
			return nil, settings.ErrMissingAPIKey
		}
	case settings.ApiTypeOllama:
		if apiKey == "" {
			apiKey = "ollama"
		}
		if baseURL == "" {
			baseURL = settings.DefaultOllamaBaseURL
		}
	default:
		return nil, errors.Wrapf(settings.ErrUnknownApiType, "%q", apiType)
	}

	config := go_openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	if c.Organization != "" {
		config.OrgID = c.Organization
	}
	if c.Timeout > 0 {
		config.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	return go_openai.NewClientWithConfig(config), nil
}

func (e *OpenAIEngine) RunInference(ctx context.Context, messages conversation.Conversation) (*conversation.Message, error) {
	req := MakeCompletionRequest(e.chat, messages)

	log.Debug().
		Str("model", req.Model).
		Int("message_count", len(req.Messages)).
		Msg("Making request to openai")

	resp, err := e.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "openai chat completion failed")
	}
	if len(resp.Choices) == 0 {
		return nil, ErrNoChoices
	}

	choice := resp.Choices[0]
	log.Debug().
		Str("finish_reason", string(choice.FinishReason)).
		Int("prompt_tokens", resp.Usage.PromptTokens).
		Int("completion_tokens", resp.Usage.CompletionTokens).
		Msg("OpenAI request completed")

	return conversation.NewChatMessage(
		conversation.RoleAssistant,
		choice.Message.Content,
		conversation.WithMetadata(map[string]interface{}{
			MetadataKeyModel:            resp.Model,
			MetadataKeyFinishReason:     string(choice.FinishReason),
			MetadataKeyPromptTokens:     resp.Usage.PromptTokens,
			MetadataKeyCompletionTokens: resp.Usage.CompletionTokens,
		}),
	), nil
}

// MakeCompletionRequest maps the conversation onto a chat completion request. Unset
// sampling parameters are left to the provider defaults.
func MakeCompletionRequest(chat settings.ChatSettings, messages conversation.Conversation) go_openai.ChatCompletionRequest {
	msgs := make([]go_openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		msgs = append(msgs, go_openai.ChatCompletionMessage{
			Role:    toOpenAIRole(m.Role),
			Content: m.Text,
		})
	}

	req := go_openai.ChatCompletionRequest{
		Model:    chat.Model,
		Messages: msgs,
		Stop:     chat.Stop,
	}
	if chat.Temperature != nil {
		req.Temperature = *chat.Temperature
	}
	if chat.TopP != nil {
		req.TopP = *chat.TopP
	}
	if chat.MaxResponseTokens != nil {
		req.MaxTokens = *chat.MaxResponseTokens
	}
	return req
}

func toOpenAIRole(role conversation.Role) string {
	switch role {
	case conversation.RoleSystem:
		return go_openai.ChatMessageRoleSystem
	case conversation.RoleAssistant:
		return go_openai.ChatMessageRoleAssistant
	default:
		return go_openai.ChatMessageRoleUser
	}
}
