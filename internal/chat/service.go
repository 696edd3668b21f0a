package chat

import (
	"context"
	"log/slog"
)

// TurnStore persists the newest message of a conversation.
type TurnStore interface {
	AppendTurn(ctx context.Context, conv *Conversation) (Message, error)
}

// Inference produces the next assistant message for a conversation.
type Inference interface {
	Converse(ctx context.Context, systemPrompt string, conv *Conversation) (Message, error)
}

type Service struct {
	store     TurnStore
	inference Inference
	logger    *slog.Logger
}

func NewService(store TurnStore, inference Inference, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, inference: inference, logger: logger}
}

// Chat validates an inbound event and runs one turn for it. A validation
// failure returns a nil conversation and touches neither collaborator.
func (s *Service) Chat(ctx context.Context, systemPrompt string, ev Event) (*Conversation, error) {
	conv, err := ev.Conversation()
	if err != nil {
		return nil, err
	}
	return s.Converse(ctx, systemPrompt, conv)
}

// Converse runs one turn on a conversation whose last message is the new
// user message. It persists the user message, asks the model, appends the
// reply and persists it. The conversation is mutated in place and returned
// even on failure; errors come back unwrapped from the failing step.
//
// A failed inference leaves the user message stored with no answer. A failed
// second write leaves the assistant message in memory only.
func (s *Service) Converse(ctx context.Context, systemPrompt string, conv *Conversation) (*Conversation, error) {
	log := s.logger.With("session_id", conv.SessionID())

	// 1) store user message
	if _, err := s.store.AppendTurn(ctx, conv); err != nil {
		log.Error("persist user message failed", "sequence", conv.Len(), "error", err)
		return conv, err
	}

	// 2) call provider with the full conversation
	reply, err := s.inference.Converse(ctx, systemPrompt, conv)
	if err != nil {
		log.Error("inference failed", "sequence", conv.Len(), "error", err)
		return conv, err
	}

	// 3) append + store assistant message
	conv.Append(reply)
	if _, err := s.store.AppendTurn(ctx, conv); err != nil {
		log.Error("persist assistant message failed", "sequence", conv.Len(), "error", err)
		return conv, err
	}

	log.Info("turn complete", "messages", conv.Len())
	return conv, nil
}
