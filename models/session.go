package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SessionStatusActive   = "active"
	SessionStatusArchived = "archived"
	SessionStatusDeleted  = "deleted"
)

const (
	MessageTypeUser      = "user"
	MessageTypeAssistant = "assistant"
)

var (
	ErrMessageNotFound      = errors.New("message not found")
	ErrEditNotAllowed       = errors.New("only user messages can be edited")
	ErrRegenerateNotAllowed = errors.New("can only regenerate responses for user messages")
	ErrSessionNotMutable    = errors.New("session is deleted and cannot be modified")
)

// Component is a generated UI artifact embedded in a session document.
type Component struct {
	ID          string    `json:"id"`
	JSX         string    `json:"jsx"`
	CSS         string    `json:"css"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Version     int       `json:"version"`
	CreatedAt   time.Time `json:"created_at"`
}

// MessageMeta carries generation accounting for an assistant turn.
type MessageMeta struct {
	Tokens         int     `json:"tokens"`
	Model          string  `json:"model"`
	ProcessingTime int64   `json:"processing_time"`
	Temperature    float64 `json:"temperature"`
	MaxTokens      int     `json:"max_tokens"`
}

// Message is one turn of a session's conversation.
type Message struct {
	ID            string       `json:"id"`
	Type          string       `json:"type"`
	Content       string       `json:"content"`
	Timestamp     time.Time    `json:"timestamp"`
	ComponentCode *Component   `json:"component_code,omitempty"`
	Metadata      *MessageMeta `json:"metadata,omitempty"`
}

// SessionSettings holds the sampling parameters for a session. Temperature
// is a pointer so an explicit 0 (deterministic sampling) stays distinct from
// "not set, use the default".
type SessionSettings struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   int      `json:"max_tokens"`
}

const DefaultTemperature = 0.7

func DefaultSessionSettings() SessionSettings {
	t := DefaultTemperature
	return SessionSettings{Model: "gpt-4o-mini", Temperature: &t, MaxTokens: 2000}
}

// SessionMetadata is derived from the message log and recomputed on every
// mutation of Messages. It never drifts from the log itself.
type SessionMetadata struct {
	TotalTokens   int       `json:"total_tokens"`
	TotalMessages int       `json:"total_messages"`
	LastActivity  time.Time `json:"last_activity"`
}

// ChatSession is a conversation thread. Messages, the current component and
// the component history are embedded jsonb documents owned exclusively by
// the session row, so every mutation is a single-row read-modify-write.
type ChatSession struct {
	ID               uuid.UUID                           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID                           `gorm:"type:uuid;not null;index" json:"user_id"`
	Name             string                              `gorm:"size:200;not null" json:"name"`
	Status           string                              `gorm:"size:20;not null;default:'active';index" json:"status"`
	Messages         datatypes.JSONSlice[Message]        `gorm:"type:jsonb" json:"messages"`
	CurrentComponent datatypes.JSONType[*Component]      `gorm:"type:jsonb" json:"current_component"`
	ComponentHistory datatypes.JSONSlice[Component]      `gorm:"type:jsonb" json:"component_history"`
	Settings         datatypes.JSONType[SessionSettings] `gorm:"type:jsonb" json:"settings"`
	Metadata         datatypes.JSONType[SessionMetadata] `gorm:"type:jsonb" json:"metadata"`
	CreatedAt        time.Time                           `json:"created_at"`
	UpdatedAt        time.Time                           `json:"updated_at"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}

func (s *ChatSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// Mutable reports whether message/component mutations are still permitted.
// Deleted is a terminal state.
func (s *ChatSession) Mutable() bool {
	return s.Status != SessionStatusDeleted
}

// Current returns the session's current component, or nil if none has been
// generated yet.
func (s *ChatSession) Current() *Component {
	return s.CurrentComponent.Data()
}

func (s *ChatSession) setCurrent(c *Component) {
	s.CurrentComponent = datatypes.NewJSONType(c)
}

// AddMessage appends a message to the log and recomputes the derived
// metadata. Missing ids and timestamps are filled in.
func (s *ChatSession) AddMessage(msg Message) Message {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	s.Messages = append(s.Messages, msg)
	s.RecomputeMetadata()
	return msg
}

// RecomputeMetadata rebuilds the derived counters from the message log.
func (s *ChatSession) RecomputeMetadata() {
	meta := SessionMetadata{
		TotalMessages: len(s.Messages),
		LastActivity:  time.Now().UTC(),
	}
	for _, m := range s.Messages {
		if m.Metadata != nil {
			meta.TotalTokens += m.Metadata.Tokens
		}
	}
	s.Metadata = datatypes.NewJSONType(meta)
}

// UpdateComponent replaces the current component, pushing the superseded one
// onto the history first. The Nth component a session ever sees carries
// version N; history entries are versioned 1..N-1 and never rewritten.
func (s *ChatSession) UpdateComponent(c Component) *Component {
	if cur := s.Current(); cur != nil {
		snapshot := *cur
		snapshot.Version = len(s.ComponentHistory) + 1
		s.ComponentHistory = append(s.ComponentHistory, snapshot)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.Version = len(s.ComponentHistory) + 1
	c.CreatedAt = time.Now().UTC()
	s.setCurrent(&c)
	return s.Current()
}

// FindMessage returns the index of the message with the given id, or -1.
func (s *ChatSession) FindMessage(id string) int {
	for i, m := range s.Messages {
		if m.ID == id {
			return i
		}
	}
	return -1
}

// DeleteMessage removes the first message with the given id.
func (s *ChatSession) DeleteMessage(id string) error {
	i := s.FindMessage(id)
	if i < 0 {
		return ErrMessageNotFound
	}
	s.Messages = append(s.Messages[:i], s.Messages[i+1:]...)
	s.RecomputeMetadata()
	return nil
}

// EditMessage replaces a user message's content and refreshes its timestamp.
// Assistant messages are immutable once created.
func (s *ChatSession) EditMessage(id, content string) (*Message, error) {
	i := s.FindMessage(id)
	if i < 0 {
		return nil, ErrMessageNotFound
	}
	if s.Messages[i].Type != MessageTypeUser {
		return nil, ErrEditNotAllowed
	}
	s.Messages[i].Content = content
	s.Messages[i].Timestamp = time.Now().UTC()
	s.RecomputeMetadata()
	return &s.Messages[i], nil
}

// TruncateThrough cuts the log so it ends at (and includes) the user message
// with the given id, discarding everything after it. It returns the target
// message and a copy of the messages preceding it, which become the context
// for regeneration.
func (s *ChatSession) TruncateThrough(id string) (Message, []Message, error) {
	i := s.FindMessage(id)
	if i < 0 {
		return Message{}, nil, ErrMessageNotFound
	}
	target := s.Messages[i]
	if target.Type != MessageTypeUser {
		return Message{}, nil, ErrRegenerateNotAllowed
	}
	prior := make([]Message, i)
	copy(prior, s.Messages[:i])
	s.Messages = s.Messages[:i+1]
	s.RecomputeMetadata()
	return target, prior, nil
}

// Clone returns a deep copy of the session under a fresh identity, with an
// independent lifecycle from the original.
func (s *ChatSession) Clone(name string) *ChatSession {
	dup := &ChatSession{
		UserID:   s.UserID,
		Name:     name,
		Status:   SessionStatusActive,
		Settings: s.Settings,
	}
	dup.Messages = make(datatypes.JSONSlice[Message], len(s.Messages))
	for i, m := range s.Messages {
		if m.ComponentCode != nil {
			c := *m.ComponentCode
			m.ComponentCode = &c
		}
		if m.Metadata != nil {
			meta := *m.Metadata
			m.Metadata = &meta
		}
		dup.Messages[i] = m
	}
	dup.ComponentHistory = make(datatypes.JSONSlice[Component], len(s.ComponentHistory))
	copy(dup.ComponentHistory, s.ComponentHistory)
	if cur := s.Current(); cur != nil {
		c := *cur
		dup.setCurrent(&c)
	}
	dup.RecomputeMetadata()
	return dup
}
