// Package history persists conversation turns, one record per
// (session_id, sequence).
package history

import (
	"context"
	"log/slog"

	"github.com/suPer8Hu/chatbot/internal/chat"
)

// Driver is a key-value backend for history records. Put overwrites any
// record already stored under the same (SessionID, Sequence). List returns a
// session's records in ascending sequence order.
type Driver interface {
	Put(ctx context.Context, rec chat.Record) error
	List(ctx context.Context, sessionID string) ([]chat.Record, error)
	Close() error
}

// Store adapts a Driver to the turn protocol.
type Store struct {
	driver Driver
	logger *slog.Logger
}

var _ chat.TurnStore = (*Store)(nil)

func NewStore(driver Driver, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{driver: driver, logger: logger}
}

// AppendTurn writes the last message of conv at sequence conv.Len() and
// returns it unchanged. Writing the same conversation state twice overwrites
// the same key. Driver errors are reported as *chat.StoreUnavailableError and
// are not retried here.
func (s *Store) AppendTurn(ctx context.Context, conv *chat.Conversation) (chat.Message, error) {
	rec := conv.LastRecord()
	if err := s.driver.Put(ctx, rec); err != nil {
		return chat.Message{}, &chat.StoreUnavailableError{SessionID: rec.SessionID, Sequence: rec.Sequence, Err: err}
	}
	s.logger.Debug("history record stored",
		"session_id", rec.SessionID,
		"sequence", rec.Sequence,
		"role", rec.Role.String(),
	)
	return conv.Last(), nil
}

// History loads a stored session. An unknown session yields an empty
// conversation.
func (s *Store) History(ctx context.Context, sessionID string) (*chat.Conversation, error) {
	recs, err := s.driver.List(ctx, sessionID)
	if err != nil {
		return nil, &chat.StoreUnavailableError{SessionID: sessionID, Err: err}
	}
	return chat.ConversationFromRecords(sessionID, recs)
}

func (s *Store) Close() error {
	return s.driver.Close()
}
