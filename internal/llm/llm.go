package llm

import (
	"context"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
)

// Message is one turn of conversation sent to the reasoning service.
type Message struct {
	Role    string
	Content string
}

// Gateway is the reasoning-service contract: a system context plus an ordered
// conversation in, one JSON document out. Implementations are stateless; all
// session state lives with the caller.
type Gateway interface {
	Complete(ctx context.Context, system string, messages []Message) (string, error)
}

// Client wraps an OpenAI-compatible API client.
type Client struct {
	api   *openai.Client
	model string
}

// New creates a new LLM client.
func New(baseURL, apiKey, modelName string) *Client {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &Client{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Complete sends the system context and conversation to the model and returns
// the raw JSON document it produced. Every call site expects a JSON object, so
// the request always sets the JSON response format.
func (c *Client) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	chatMsgs := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleSystem,
		Content: system,
	})
	for _, m := range messages {
		role := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			role = openai.ChatMessageRoleAssistant
		}
		chatMsgs = append(chatMsgs, openai.ChatCompletionMessage{
			Role:    role,
			Content: m.Content,
		})
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: chatMsgs,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}

	raw := resp.Choices[0].Message.Content
	slog.Debug("LLM response", "raw", raw)
	return raw, nil
}

// Ping verifies the endpoint is reachable and the configured model exists.
func (c *Client) Ping(ctx context.Context) error {
	models, err := c.api.ListModels(ctx)
	if err != nil {
		return fmt.Errorf("list models: %w", err)
	}
	for _, m := range models.Models {
		if m.ID == c.model {
			return nil
		}
	}
	// Some OpenAI-compatible servers omit aliases from the model list, so a
	// missing entry is only worth a warning.
	slog.Warn("configured model not in endpoint model list", "model", c.model)
	return nil
}
