package chat

import "fmt"

// Event is the inbound request: a new prompt on top of prior history.
type Event struct {
	SessionID string    `json:"session_id"`
	Prompt    string    `json:"prompt" binding:"required"`
	Messages  []Message `json:"messages" binding:"dive"`
}

func (e Event) Validate() error {
	if e.Prompt == "" {
		return &ValidationError{Field: "prompt", Reason: "must not be empty"}
	}
	return validateMessages(e.Messages)
}

// Conversation builds the request-scoped conversation: prior messages in
// order, then the prompt as a user message. A missing session id is
// generated.
func (e Event) Conversation() (*Conversation, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	sessionID := e.SessionID
	if sessionID == "" {
		sid, err := NewSessionID()
		if err != nil {
			return nil, fmt.Errorf("generate session id: %w", err)
		}
		sessionID = sid
	}
	conv, err := FromHistory(sessionID, e.Messages)
	if err != nil {
		return nil, err
	}
	conv.Append(TextMessage(RoleUser, e.Prompt))
	return conv, nil
}
