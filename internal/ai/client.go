package ai

import (
	"context"
	"errors"
	"log/slog"

	"github.com/suPer8Hu/chatbot/internal/chat"
)

// Client adapts a Provider to the turn protocol.
type Client struct {
	name     string
	provider Provider
	logger   *slog.Logger
}

var _ chat.Inference = (*Client)(nil)

func NewClient(name string, provider Provider, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{name: name, provider: provider, logger: logger}
}

// Converse sends the system prompt and the whole conversation with
// DefaultSampling and parses the one reply. Transport failures become
// *chat.InferenceUnavailableError; unreadable replies stay *chat.ParseError.
// Usage is logged and has no effect on the result.
func (c *Client) Converse(ctx context.Context, systemPrompt string, conv *chat.Conversation) (chat.Message, error) {
	c.logger.Info("generating message", "provider", c.name, "session_id", conv.SessionID(), "messages", conv.Len())

	resp, err := c.provider.Converse(ctx, Request{
		System:   systemPrompt,
		Messages: conv.ToInference(),
		Sampling: DefaultSampling,
	})
	if err != nil {
		if errors.Is(err, chat.ErrParse) {
			return chat.Message{}, err
		}
		return chat.Message{}, &chat.InferenceUnavailableError{Provider: c.name, Err: err}
	}

	c.logger.Info("token usage",
		"provider", c.name,
		"session_id", conv.SessionID(),
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"total_tokens", resp.Usage.TotalTokens,
		"stop_reason", resp.StopReason,
	)

	return chat.MessageFromInference(resp.Message)
}
