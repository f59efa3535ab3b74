package models

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSession() *ChatSession {
	s := &ChatSession{Name: "Test", Status: SessionStatusActive}
	s.RecomputeMetadata()
	return s
}

func TestAddMessageRecomputesMetadata(t *testing.T) {
	s := newTestSession()

	s.AddMessage(Message{Type: MessageTypeUser, Content: "build a button"})
	s.AddMessage(Message{
		Type:     MessageTypeAssistant,
		Content:  "done",
		Metadata: &MessageMeta{Tokens: 120},
	})
	s.AddMessage(Message{
		Type:     MessageTypeAssistant,
		Content:  "done again",
		Metadata: &MessageMeta{Tokens: 80},
	})

	meta := s.Metadata.Data()
	assert.Equal(t, len(s.Messages), meta.TotalMessages)
	assert.Equal(t, 200, meta.TotalTokens)
	assert.False(t, meta.LastActivity.IsZero())
}

func TestAddMessageFillsIDAndTimestamp(t *testing.T) {
	s := newTestSession()

	msg := s.AddMessage(Message{Type: MessageTypeUser, Content: "hello"})
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())

	kept := s.AddMessage(Message{ID: "msg-1", Type: MessageTypeUser, Content: "again"})
	assert.Equal(t, "msg-1", kept.ID)
}

func TestMetadataNeverDriftsAcrossMutations(t *testing.T) {
	s := newTestSession()
	for i := 0; i < 4; i++ {
		s.AddMessage(Message{
			ID:       fmt.Sprintf("msg-%d", i),
			Type:     MessageTypeUser,
			Content:  "x",
			Metadata: &MessageMeta{Tokens: 10},
		})
	}

	require.NoError(t, s.DeleteMessage("msg-1"))
	meta := s.Metadata.Data()
	assert.Equal(t, 3, meta.TotalMessages)
	assert.Equal(t, 30, meta.TotalTokens)

	_, err := s.EditMessage("msg-2", "edited")
	require.NoError(t, err)
	assert.Equal(t, 3, s.Metadata.Data().TotalMessages)
}

func TestUpdateComponentPreservesHistory(t *testing.T) {
	s := newTestSession()

	const n = 4
	for i := 0; i < n; i++ {
		s.UpdateComponent(Component{
			JSX:  fmt.Sprintf("function C%d() {}", i),
			CSS:  ".c {}",
			Name: fmt.Sprintf("C%d", i),
		})
	}

	assert.Len(t, s.ComponentHistory, n-1)
	require.NotNil(t, s.Current())
	assert.Equal(t, n, s.Current().Version)

	for i, snapshot := range s.ComponentHistory {
		assert.Equal(t, i+1, snapshot.Version)
	}
}

func TestUpdateComponentFirstVersionIsOne(t *testing.T) {
	s := newTestSession()

	applied := s.UpdateComponent(Component{JSX: "function Button() {}", CSS: ".btn {}", Name: "Button"})
	assert.Equal(t, 1, applied.Version)
	assert.Empty(t, s.ComponentHistory)
	assert.NotEmpty(t, applied.ID)
	assert.False(t, applied.CreatedAt.IsZero())
}

func TestEditMessageRules(t *testing.T) {
	s := newTestSession()
	s.AddMessage(Message{ID: "u1", Type: MessageTypeUser, Content: "make it red"})
	s.AddMessage(Message{ID: "a1", Type: MessageTypeAssistant, Content: "done"})

	_, err := s.EditMessage("a1", "nope")
	assert.ErrorIs(t, err, ErrEditNotAllowed)

	_, err = s.EditMessage("missing", "nope")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	before := s.Messages[0].Timestamp
	msg, err := s.EditMessage("u1", "make it blue")
	require.NoError(t, err)
	assert.Equal(t, "make it blue", msg.Content)
	assert.False(t, msg.Timestamp.Before(before))
}

func TestDeleteMessage(t *testing.T) {
	s := newTestSession()
	s.AddMessage(Message{ID: "u1", Type: MessageTypeUser, Content: "one"})
	s.AddMessage(Message{ID: "u2", Type: MessageTypeUser, Content: "two"})

	assert.ErrorIs(t, s.DeleteMessage("missing"), ErrMessageNotFound)
	require.NoError(t, s.DeleteMessage("u1"))
	assert.Len(t, s.Messages, 1)
	assert.Equal(t, "u2", s.Messages[0].ID)
}

func TestTruncateThroughDiscardsEverythingAfterTarget(t *testing.T) {
	s := newTestSession()
	s.AddMessage(Message{ID: "u1", Type: MessageTypeUser, Content: "first"})
	s.AddMessage(Message{ID: "a1", Type: MessageTypeAssistant, Content: "reply"})
	s.AddMessage(Message{ID: "u2", Type: MessageTypeUser, Content: "second"})
	s.AddMessage(Message{ID: "a2", Type: MessageTypeAssistant, Content: "reply two"})

	target, prior, err := s.TruncateThrough("u2")
	require.NoError(t, err)

	assert.Equal(t, "u2", target.ID)
	require.Len(t, prior, 2)
	assert.Equal(t, "u1", prior[0].ID)
	assert.Equal(t, "a1", prior[1].ID)

	require.Len(t, s.Messages, 3)
	assert.Equal(t, "u2", s.Messages[len(s.Messages)-1].ID)
	assert.Equal(t, -1, s.FindMessage("a2"))
}

func TestTruncateThroughRules(t *testing.T) {
	s := newTestSession()
	s.AddMessage(Message{ID: "a1", Type: MessageTypeAssistant, Content: "reply"})

	_, _, err := s.TruncateThrough("missing")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	_, _, err = s.TruncateThrough("a1")
	assert.ErrorIs(t, err, ErrRegenerateNotAllowed)
}

func TestCloneIsIndependent(t *testing.T) {
	s := newTestSession()
	s.AddMessage(Message{ID: "u1", Type: MessageTypeUser, Content: "first"})
	s.UpdateComponent(Component{JSX: "function A() {}", CSS: ".a {}", Name: "A"})
	s.UpdateComponent(Component{JSX: "function B() {}", CSS: ".b {}", Name: "B"})

	dup := s.Clone("Test (Copy)")
	assert.Equal(t, "Test (Copy)", dup.Name)
	assert.Equal(t, SessionStatusActive, dup.Status)
	assert.Len(t, dup.Messages, 1)
	assert.Len(t, dup.ComponentHistory, 1)
	require.NotNil(t, dup.Current())
	assert.Equal(t, "B", dup.Current().Name)

	// Mutating the copy leaves the original untouched.
	dup.AddMessage(Message{Type: MessageTypeUser, Content: "more"})
	dup.UpdateComponent(Component{JSX: "function C() {}", CSS: ".c {}", Name: "C"})
	assert.Len(t, s.Messages, 1)
	assert.Equal(t, "B", s.Current().Name)
}

func TestCloneDeepCopiesMessagePayloads(t *testing.T) {
	s := newTestSession()
	s.AddMessage(Message{ID: "u1", Type: MessageTypeUser, Content: "build it"})
	s.AddMessage(Message{
		ID:            "a1",
		Type:          MessageTypeAssistant,
		Content:       "done",
		ComponentCode: &Component{Name: "Widget", JSX: "function Widget() {}", Version: 1},
		Metadata:      &MessageMeta{Tokens: 50, Model: "gpt-4o-mini"},
	})

	dup := s.Clone("Copy")

	require.NotNil(t, dup.Messages[1].ComponentCode)
	require.NotNil(t, dup.Messages[1].Metadata)
	assert.NotSame(t, s.Messages[1].ComponentCode, dup.Messages[1].ComponentCode)
	assert.NotSame(t, s.Messages[1].Metadata, dup.Messages[1].Metadata)

	dup.Messages[1].ComponentCode.Name = "Mutated"
	dup.Messages[1].Metadata.Tokens = 999
	assert.Equal(t, "Widget", s.Messages[1].ComponentCode.Name)
	assert.Equal(t, 50, s.Messages[1].Metadata.Tokens)
}

func TestMutable(t *testing.T) {
	s := newTestSession()
	assert.True(t, s.Mutable())
	s.Status = SessionStatusArchived
	assert.True(t, s.Mutable())
	s.Status = SessionStatusDeleted
	assert.False(t, s.Mutable())
}
