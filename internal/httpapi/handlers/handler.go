package handlers

import (
	"context"
	"log/slog"

	"github.com/suPer8Hu/chatbot/internal/chat"
)

// Chatter runs one conversational turn.
type Chatter interface {
	Chat(ctx context.Context, systemPrompt string, ev chat.Event) (*chat.Conversation, error)
}

// HistoryReader loads a persisted session.
type HistoryReader interface {
	History(ctx context.Context, sessionID string) (*chat.Conversation, error)
}

// TurnPublisher announces finished turns.
type TurnPublisher interface {
	PublishTurn(ctx context.Context, ev chat.TurnEvent) error
}

type Handler struct {
	ChatSvc      Chatter
	History      HistoryReader
	Publisher    TurnPublisher // optional
	SystemPrompt string
	Logger       *slog.Logger
}

func NewHandler(svc Chatter, history HistoryReader, pub TurnPublisher, systemPrompt string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		ChatSvc:      svc,
		History:      history,
		Publisher:    pub,
		SystemPrompt: systemPrompt,
		Logger:       logger,
	}
}
