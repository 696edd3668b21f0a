package history

import (
	"context"
	"log/slog"

	"github.com/suPer8Hu/chatbot/internal/chat"
)

// Unanswered returns the sequences of the trailing user messages that have no
// assistant reply after them.
func Unanswered(conv *chat.Conversation) []int {
	msgs := conv.Messages()
	var seqs []int
	for i := len(msgs) - 1; i >= 0 && msgs[i].Role == chat.RoleUser; i-- {
		seqs = append([]int{i + 1}, seqs...)
	}
	return seqs
}

// Reconciler inspects the stored history behind failed turns.
type Reconciler struct {
	store  *Store
	logger *slog.Logger
}

func NewReconciler(store *Store, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{store: store, logger: logger}
}

// HandleTurn logs any unanswered user entries left by a failed turn.
// Successful turns are only logged. A history read failure is returned so
// the caller can dead-letter the event.
func (r *Reconciler) HandleTurn(ctx context.Context, ev chat.TurnEvent) ([]int, error) {
	log := r.logger.With("session_id", ev.SessionID, "user_sequence", ev.UserSequence)
	if ev.Status == chat.TurnSucceeded {
		log.Debug("turn succeeded", "assistant_sequence", ev.AssistantSequence)
		return nil, nil
	}

	conv, err := r.store.History(ctx, ev.SessionID)
	if err != nil {
		return nil, err
	}

	pending := Unanswered(conv)
	if len(pending) == 0 {
		log.Info("failed turn already answered", "error_kind", ev.ErrorKind, "messages", conv.Len())
		return nil, nil
	}
	log.Warn("unanswered user entries",
		"error_kind", ev.ErrorKind,
		"error", ev.Error,
		"sequences", pending,
		"messages", conv.Len(),
	)
	return pending, nil
}
