package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/suPer8Hu/chatbot/internal/chat"
)

type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
	Retry   Retry
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
		Retry:   DefaultRetry,
	}
}

type ollamaChatReq struct {
	Model    string        `json:"model"`
	Messages []ollamaMsg   `json:"messages"`
	Stream   bool          `json:"stream"`
	Options  ollamaOptions `json:"options"`
}

type ollamaOptions struct {
	Temperature float32 `json:"temperature"`
	TopK        int     `json:"top_k"`
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResp struct {
	Message         ollamaMsg `json:"message"`
	DoneReason      string    `json:"done_reason"`
	PromptEvalCount int       `json:"prompt_eval_count"`
	EvalCount       int       `json:"eval_count"`
	Error           string    `json:"error,omitempty"`
}

// Converse posts to /api/chat without streaming. The system prompt goes
// first as a "system" message.
func (p *OllamaProvider) Converse(ctx context.Context, in Request) (*Response, error) {
	if p.Client == nil {
		return nil, errors.New("ollama: http client is nil")
	}

	msgs := make([]ollamaMsg, 0, len(in.Messages)+1)
	if in.System != "" {
		msgs = append(msgs, ollamaMsg{Role: "system", Content: in.System})
	}
	for _, m := range in.Messages {
		msgs = append(msgs, ollamaMsg{Role: m.Role, Content: flattenText(m.Content)})
	}

	b, err := json.Marshal(ollamaChatReq{
		Model:    p.Model,
		Messages: msgs,
		Stream:   false,
		Options:  ollamaOptions{Temperature: in.Sampling.Temperature, TopK: in.Sampling.TopK},
	})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/chat", strings.TrimRight(p.BaseURL, "/"))
	resp, err := p.Retry.do(ctx, p.Client, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("ollama: status %d", resp.StatusCode)
	}

	var decoded ollamaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &chat.ParseError{Field: "body", Reason: err.Error()}
	}
	if decoded.Error != "" {
		return nil, errors.New(decoded.Error)
	}

	return &Response{
		Message: textReply(decoded.Message.Role, decoded.Message.Content),
		Usage: Usage{
			InputTokens:  decoded.PromptEvalCount,
			OutputTokens: decoded.EvalCount,
			TotalTokens:  decoded.PromptEvalCount + decoded.EvalCount,
		},
		StopReason: decoded.DoneReason,
	}, nil
}
