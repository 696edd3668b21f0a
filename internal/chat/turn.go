package chat

import (
	"errors"
	"time"
)

type TurnStatus string

const (
	TurnSucceeded TurnStatus = "succeeded"
	TurnFailed    TurnStatus = "failed"
)

// TurnEvent describes how a turn ended, for audit and reconciliation.
// Sequences are 1-indexed positions of the turn's user and assistant
// messages; AssistantSequence is zero when no reply was produced.
type TurnEvent struct {
	SessionID         string     `json:"session_id"`
	Status            TurnStatus `json:"status"`
	UserSequence      int        `json:"user_sequence"`
	AssistantSequence int        `json:"assistant_sequence,omitempty"`
	ErrorKind         string     `json:"error_kind,omitempty"`
	Error             string     `json:"error,omitempty"`
	At                time.Time  `json:"at"`
}

// NewTurnEvent summarises a finished turn. userSeq is the sequence of the
// user message the turn started with.
func NewTurnEvent(conv *Conversation, userSeq int, turnErr error) TurnEvent {
	ev := TurnEvent{
		SessionID:    conv.SessionID(),
		Status:       TurnSucceeded,
		UserSequence: userSeq,
		At:           time.Now().UTC(),
	}
	if conv.Len() > userSeq {
		ev.AssistantSequence = conv.Len()
	}
	if turnErr != nil {
		ev.Status = TurnFailed
		ev.ErrorKind = ErrorKind(turnErr)
		ev.Error = turnErr.Error()
	}
	return ev
}

// ErrorKind names the kind of a core error. Store errors may wrap a parse
// error from a corrupt row; the outer kind wins.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrInferenceUnavailable):
		return "inference_unavailable"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrParse):
		return "parse"
	default:
		return "internal"
	}
}
