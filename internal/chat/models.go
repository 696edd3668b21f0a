package chat

import (
	"errors"
	"fmt"
	"sort"
)

// Role is the author of a message. The zero value is RoleUser.
type Role uint8

const (
	RoleUser Role = iota
	RoleAssistant
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAssistant:
		return "assistant"
	default:
		return fmt.Sprintf("Role(%d)", uint8(r))
	}
}

// ParseRole maps the lowercase wire form onto a Role.
func ParseRole(s string) (Role, error) {
	switch s {
	case "user":
		return RoleUser, nil
	case "assistant":
		return RoleAssistant, nil
	default:
		return 0, &ParseError{Field: "role", Reason: fmt.Sprintf("unknown role %q", s)}
	}
}

func (r Role) MarshalText() ([]byte, error) {
	if r != RoleUser && r != RoleAssistant {
		return nil, fmt.Errorf("chat: cannot marshal %s", r)
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

type ContentItem struct {
	Text string `json:"text" binding:"required"`
}

func (c ContentItem) Validate() error {
	if len(c.Text) < 1 {
		return &ValidationError{Field: "text", Reason: "must not be empty"}
	}
	return nil
}

// Message is one turn. Content may be empty structurally, but every item
// must carry text.
type Message struct {
	Role    Role          `json:"role"`
	Content []ContentItem `json:"content" binding:"required,dive"`
}

func TextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentItem{{Text: text}}}
}

func (m Message) Validate() error {
	if m.Content == nil {
		return &ValidationError{Field: "content", Reason: "is required"}
	}
	for i, c := range m.Content {
		if err := c.Validate(); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				ve.Field = fmt.Sprintf("content[%d].%s", i, ve.Field)
			}
			return err
		}
	}
	return nil
}

func validateMessages(messages []Message) error {
	for i, m := range messages {
		if err := m.Validate(); err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				ve.Field = fmt.Sprintf("messages[%d].%s", i, ve.Field)
			}
			return err
		}
	}
	return nil
}

func (m Message) clone() Message {
	if m.Content == nil {
		return m
	}
	content := make([]ContentItem, len(m.Content))
	copy(content, m.Content)
	return Message{Role: m.Role, Content: content}
}

// Conversation is the canonical in-memory form of one session's exchange.
// Insertion order is chronological order and the order replayed to the model.
type Conversation struct {
	sessionID string
	messages  []Message
}

// FromHistory wraps prior turns without reordering them.
func FromHistory(sessionID string, messages []Message) (*Conversation, error) {
	if err := validateMessages(messages); err != nil {
		return nil, err
	}
	out := make([]Message, len(messages))
	for i, m := range messages {
		out[i] = m.clone()
	}
	return &Conversation{sessionID: sessionID, messages: out}, nil
}

func (c *Conversation) SessionID() string { return c.sessionID }

func (c *Conversation) Len() int { return len(c.messages) }

// Messages returns a copy; callers cannot reorder the conversation.
func (c *Conversation) Messages() []Message {
	out := make([]Message, len(c.messages))
	for i, m := range c.messages {
		out[i] = m.clone()
	}
	return out
}

func (c *Conversation) Append(m Message) {
	c.messages = append(c.messages, m.clone())
}

// Last panics on an empty conversation.
func (c *Conversation) Last() Message {
	if len(c.messages) == 0 {
		panic("chat: Last called on empty conversation " + c.sessionID)
	}
	return c.messages[len(c.messages)-1].clone()
}

// Wire is the JSON shape exchanged with API clients.
type Wire struct {
	SessionID string    `json:"session_id"`
	Messages  []Message `json:"messages"`
}

func (c *Conversation) ToWire() Wire {
	return Wire{SessionID: c.sessionID, Messages: c.Messages()}
}

func FromWire(w Wire) (*Conversation, error) {
	return FromHistory(w.SessionID, w.Messages)
}

// InferenceMessage is the model-call shape: raw role string plus content
// array, no session id. The system prompt is sent alongside, not in here.
type InferenceMessage struct {
	Role    string             `json:"role"`
	Content []InferenceContent `json:"content"`
}

type InferenceContent struct {
	Text string `json:"text"`
}

func (c *Conversation) ToInference() []InferenceMessage {
	out := make([]InferenceMessage, 0, len(c.messages))
	for _, m := range c.messages {
		content := make([]InferenceContent, 0, len(m.Content))
		for _, item := range m.Content {
			content = append(content, InferenceContent{Text: item.Text})
		}
		out = append(out, InferenceMessage{Role: m.Role.String(), Content: content})
	}
	return out
}

// MessageFromInference parses a single reply turn out of a model response.
func MessageFromInference(raw InferenceMessage) (Message, error) {
	role, err := ParseRole(raw.Role)
	if err != nil {
		return Message{}, err
	}
	if len(raw.Content) == 0 {
		return Message{}, &ParseError{Field: "content", Reason: "missing"}
	}
	content := make([]ContentItem, 0, len(raw.Content))
	for i, item := range raw.Content {
		if item.Text == "" {
			return Message{}, &ParseError{Field: fmt.Sprintf("content[%d].text", i), Reason: "missing"}
		}
		content = append(content, ContentItem{Text: item.Text})
	}
	return Message{Role: role, Content: content}, nil
}

// Record is one persisted history row, keyed by (SessionID, Sequence).
type Record struct {
	SessionID string
	Sequence  int
	Role      Role
	Content   []ContentItem
}

// LastRecord is the persistence form of the newest message; its sequence is
// the conversation length.
func (c *Conversation) LastRecord() Record {
	last := c.Last()
	return Record{
		SessionID: c.sessionID,
		Sequence:  len(c.messages),
		Role:      last.Role,
		Content:   last.Content,
	}
}

// ConversationFromRecords rebuilds a session from stored rows, ordered by
// sequence. Sequence gaps are not filled in.
func ConversationFromRecords(sessionID string, records []Record) (*Conversation, error) {
	sorted := append([]Record(nil), records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Sequence < sorted[j].Sequence })

	msgs := make([]Message, 0, len(sorted))
	for _, r := range sorted {
		if r.SessionID != sessionID {
			return nil, fmt.Errorf("chat: record %s/%d does not belong to session %s", r.SessionID, r.Sequence, sessionID)
		}
		content := r.Content
		if content == nil {
			content = []ContentItem{}
		}
		msgs = append(msgs, Message{Role: r.Role, Content: content})
	}
	return FromHistory(sessionID, msgs)
}
