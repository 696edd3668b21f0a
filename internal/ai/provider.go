package ai

import (
	"context"
	"strings"

	"github.com/suPer8Hu/chatbot/internal/chat"
)

// Sampling is fixed per deployment; callers cannot tune it.
type Sampling struct {
	Temperature float32
	TopK        int
}

var DefaultSampling = Sampling{Temperature: 0.5, TopK: 200}

type Request struct {
	System   string
	Messages []chat.InferenceMessage
	Sampling Sampling
}

type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

type Response struct {
	Message    chat.InferenceMessage
	Usage      Usage
	StopReason string
}

// Provider sends one conversation to a hosted model and returns its single
// reply turn. Providers report a reply they cannot read as *chat.ParseError.
type Provider interface {
	Converse(ctx context.Context, req Request) (*Response, error)
}

// flattenText joins a message's content items for APIs that take one string
// per message.
func flattenText(content []chat.InferenceContent) string {
	parts := make([]string, 0, len(content))
	for _, c := range content {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n")
}

// textReply wraps a single-string API reply in the inference envelope. An
// empty string yields an item without text so that parsing rejects it.
func textReply(role, text string) chat.InferenceMessage {
	return chat.InferenceMessage{Role: role, Content: []chat.InferenceContent{{Text: text}}}
}
