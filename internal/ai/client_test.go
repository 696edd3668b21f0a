package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/suPer8Hu/chatbot/internal/chat"
)

type stubProvider struct {
	resp *Response
	err  error
	got  Request
}

func (p *stubProvider) Converse(ctx context.Context, req Request) (*Response, error) {
	p.got = req
	return p.resp, p.err
}

func goatConversation(t *testing.T) *chat.Conversation {
	t.Helper()
	conv, err := chat.FromHistory("s1", []chat.Message{chat.TextMessage(chat.RoleUser, "Write me a rhyme about a goat")})
	require.NoError(t, err)
	return conv
}

func TestClient_Converse(t *testing.T) {
	p := &stubProvider{resp: &Response{
		Message:    textReply("assistant", "A goat on a hill"),
		Usage:      Usage{InputTokens: 12, OutputTokens: 6, TotalTokens: 18},
		StopReason: "end_turn",
	}}
	c := NewClient("stub", p, nil)

	msg, err := c.Converse(context.Background(), "be nice", goatConversation(t))
	require.NoError(t, err)
	assert.Equal(t, chat.TextMessage(chat.RoleAssistant, "A goat on a hill"), msg)

	assert.Equal(t, "be nice", p.got.System)
	assert.Equal(t, DefaultSampling, p.got.Sampling)
	assert.Equal(t, float32(0.5), p.got.Sampling.Temperature)
	assert.Equal(t, 200, p.got.Sampling.TopK)
	require.Len(t, p.got.Messages, 1)
	assert.Equal(t, "user", p.got.Messages[0].Role)
}

func TestClient_TransportErrorIsInferenceUnavailable(t *testing.T) {
	cause := errors.New("ThrottlingException")
	c := NewClient("stub", &stubProvider{err: cause}, nil)

	_, err := c.Converse(context.Background(), "", goatConversation(t))
	var ie *chat.InferenceUnavailableError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "stub", ie.Provider)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, chat.ErrParse)
}

func TestClient_ParseErrors(t *testing.T) {
	cases := map[string]*stubProvider{
		"provider parse error": {err: &chat.ParseError{Field: "output", Reason: "unexpected"}},
		"unknown role":         {resp: &Response{Message: textReply("system", "hi")}},
		"empty text":           {resp: &Response{Message: textReply("assistant", "")}},
		"no content":           {resp: &Response{Message: chat.InferenceMessage{Role: "assistant"}}},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := NewClient("stub", p, nil).Converse(context.Background(), "", goatConversation(t))
			assert.ErrorIs(t, err, chat.ErrParse)
			assert.NotErrorIs(t, err, chat.ErrInferenceUnavailable)
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	p := &stubProvider{}
	var gotModel string
	reg.Register(" Stub ", func(ctx context.Context, model string) (Provider, error) {
		gotModel = model
		return p, nil
	})

	got, err := reg.Get(context.Background(), "STUB", "m1")
	require.NoError(t, err)
	assert.Same(t, p, got)
	assert.Equal(t, "m1", gotModel)
	assert.Equal(t, []string{"stub"}, reg.Names())

	c, err := reg.Client(context.Background(), "stub", "m2", nil)
	require.NoError(t, err)
	assert.NotNil(t, c)

	_, err = reg.Get(context.Background(), "nope", "")
	assert.ErrorIs(t, err, ErrUnknownProvider)
}
