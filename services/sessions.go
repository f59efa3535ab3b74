package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"compforge/models"
)

// ErrSessionNotFound covers both a missing session and one the caller does
// not own.
var ErrSessionNotFound = errors.New("session not found")

// Appended as the assistant turn when generation fails, so the user message
// never sits unanswered.
const generationFailureReply = "I apologize, but I encountered an error while processing your request. Please try again with a different prompt or check your message."

// SessionService owns a session's message log, current component and
// component history across sends, edits, deletes and regenerations. Each
// mutation is a load, an in-memory transform via the model's methods, and a
// single-row save; the cache is written through best-effort afterwards.
//
// Two concurrent sends against one session can interleave their
// read-modify-write. There is no per-session lock or revision check; this
// mirrors the accepted limitation of the upstream design.
type SessionService struct {
	db        *gorm.DB
	cache     *Cache
	generator *Generator
}

func NewSessionService(db *gorm.DB, cache *Cache, generator *Generator) *SessionService {
	return &SessionService{db: db, cache: cache, generator: generator}
}

// SendResult carries everything a send or regenerate produced.
type SendResult struct {
	UserMessage      models.Message      `json:"user_message"`
	AssistantMessage models.Message      `json:"assistant_message"`
	Component        *models.Component   `json:"component,omitempty"`
	Session          *models.ChatSession `json:"session"`
}

func (s *SessionService) loadOwned(userID, sessionID uuid.UUID) (*models.ChatSession, error) {
	var session models.ChatSession
	err := s.db.Where("id = ? AND user_id = ?", sessionID, userID).First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (s *SessionService) loadMutable(userID, sessionID uuid.UUID) (*models.ChatSession, error) {
	session, err := s.loadOwned(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.Mutable() {
		return nil, models.ErrSessionNotMutable
	}
	return session, nil
}

func (s *SessionService) persist(ctx context.Context, session *models.ChatSession) error {
	if err := s.db.Save(session).Error; err != nil {
		return err
	}
	s.cache.SetSession(ctx, session)
	return nil
}

// Create opens a new session for the user with the given settings merged
// over the defaults.
func (s *SessionService) Create(ctx context.Context, userID uuid.UUID, name string, settings models.SessionSettings) (*models.ChatSession, error) {
	defaults := models.DefaultSessionSettings()
	if settings.Model == "" {
		settings.Model = defaults.Model
	}
	if settings.Temperature == nil {
		settings.Temperature = defaults.Temperature
	}
	if settings.MaxTokens == 0 {
		settings.MaxTokens = defaults.MaxTokens
	}

	session := &models.ChatSession{
		UserID:   userID,
		Name:     name,
		Status:   models.SessionStatusActive,
		Settings: datatypes.NewJSONType(settings),
	}
	session.RecomputeMetadata()

	if err := s.db.Create(session).Error; err != nil {
		return nil, err
	}

	s.recordUserUsage(ctx, userID, 1, 0, 0)
	s.cache.SetSession(ctx, session)
	return session, nil
}

// Get returns a session, serving from cache when possible. Deleted sessions
// are invisible.
func (s *SessionService) Get(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, error) {
	if cached := s.cache.GetSession(ctx, sessionID); cached != nil {
		if cached.UserID != userID || cached.Status == models.SessionStatusDeleted {
			return nil, ErrSessionNotFound
		}
		return cached, nil
	}

	session, err := s.loadOwned(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status == models.SessionStatusDeleted {
		return nil, ErrSessionNotFound
	}
	s.cache.SetSession(ctx, session)
	return session, nil
}

// List returns the user's sessions with the given status, most recently
// updated first.
func (s *SessionService) List(ctx context.Context, userID uuid.UUID, status string, page, limit int) ([]models.ChatSession, int64, error) {
	if status == "" {
		status = models.SessionStatusActive
	}
	query := s.db.Model(&models.ChatSession{}).Where("user_id = ? AND status = ?", userID, status)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var sessions []models.ChatSession
	err := query.Order("updated_at DESC").
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&sessions).Error
	if err != nil {
		return nil, 0, err
	}
	return sessions, total, nil
}

// Update changes a session's name and/or settings.
func (s *SessionService) Update(ctx context.Context, userID, sessionID uuid.UUID, name string, settings *models.SessionSettings) (*models.ChatSession, error) {
	session, err := s.loadMutable(userID, sessionID)
	if err != nil {
		return nil, err
	}
	if name != "" {
		session.Name = name
	}
	if settings != nil {
		session.Settings = datatypes.NewJSONType(*settings)
	}
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Archive moves a session out of the active list without losing it.
func (s *SessionService) Archive(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, error) {
	session, err := s.loadMutable(userID, sessionID)
	if err != nil {
		return nil, err
	}
	session.Status = models.SessionStatusArchived
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Delete soft-deletes: the row stays, the status becomes terminal and the
// cache entry is dropped.
func (s *SessionService) Delete(ctx context.Context, userID, sessionID uuid.UUID) error {
	session, err := s.loadOwned(userID, sessionID)
	if err != nil {
		return err
	}
	session.Status = models.SessionStatusDeleted
	if err := s.db.Save(session).Error; err != nil {
		return err
	}
	s.cache.DeleteSession(ctx, sessionID)
	return nil
}

// Duplicate clones the full conversation and component state into a new
// session with an independent lifecycle.
func (s *SessionService) Duplicate(ctx context.Context, userID, sessionID uuid.UUID) (*models.ChatSession, error) {
	session, err := s.loadOwned(userID, sessionID)
	if err != nil {
		return nil, err
	}
	dup := session.Clone(session.Name + " (Copy)")
	if err := s.db.Create(dup).Error; err != nil {
		return nil, err
	}
	return dup, nil
}

// SessionStats aggregates a user's sessions by status.
type SessionStats struct {
	ByStatus       map[string]StatusStats `json:"by_status"`
	RecentActivity []models.ChatSession   `json:"recent_activity"`
}

type StatusStats struct {
	Count         int `json:"count"`
	TotalMessages int `json:"total_messages"`
	TotalTokens   int `json:"total_tokens"`
}

// Stats summarizes the user's sessions. The counters live inside the jsonb
// metadata document, so aggregation happens here rather than in SQL.
func (s *SessionService) Stats(ctx context.Context, userID uuid.UUID) (*SessionStats, error) {
	var sessions []models.ChatSession
	if err := s.db.Where("user_id = ?", userID).Find(&sessions).Error; err != nil {
		return nil, err
	}

	stats := &SessionStats{ByStatus: make(map[string]StatusStats)}
	for _, session := range sessions {
		meta := session.Metadata.Data()
		entry := stats.ByStatus[session.Status]
		entry.Count++
		entry.TotalMessages += meta.TotalMessages
		entry.TotalTokens += meta.TotalTokens
		stats.ByStatus[session.Status] = entry
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].Metadata.Data().LastActivity.After(sessions[j].Metadata.Data().LastActivity)
	})
	if len(sessions) > 5 {
		sessions = sessions[:5]
	}
	stats.RecentActivity = sessions
	return stats, nil
}

// SendMessage records the user turn, runs the generation pipeline
// (refinement when a component already exists), applies the result to the
// session and answers with an assistant turn. When the pipeline fails, a
// fixed apology turn is recorded instead so the user message never dangles;
// the returned error is still the wrapped generation failure.
func (s *SessionService) SendMessage(ctx context.Context, userID, sessionID uuid.UUID, content string) (*SendResult, error) {
	session, err := s.loadMutable(userID, sessionID)
	if err != nil {
		return nil, err
	}

	prior := make([]models.Message, len(session.Messages))
	copy(prior, session.Messages)

	userMsg := session.AddMessage(models.Message{
		Type:    models.MessageTypeUser,
		Content: content,
	})

	result, err := s.respond(ctx, session, content, prior)
	if err != nil {
		return s.recordFailure(ctx, session, userMsg, err)
	}
	result.UserMessage = userMsg

	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	s.recordUserUsage(ctx, userID, 0, 1, result.AssistantMessage.Metadata.Tokens)
	slog.Info("message processed",
		"session_id", sessionID,
		"tokens", result.AssistantMessage.Metadata.Tokens)
	return result, nil
}

// RegenerateResponse rewinds the conversation to the given user message,
// discarding everything after it, and answers it afresh exactly as a normal
// send would.
func (s *SessionService) RegenerateResponse(ctx context.Context, userID, sessionID uuid.UUID, messageID string) (*SendResult, error) {
	session, err := s.loadMutable(userID, sessionID)
	if err != nil {
		return nil, err
	}

	target, prior, err := session.TruncateThrough(messageID)
	if err != nil {
		return nil, err
	}

	result, err := s.respond(ctx, session, target.Content, prior)
	if err != nil {
		return s.recordFailure(ctx, session, target, err)
	}
	result.UserMessage = target

	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	slog.Info("response regenerated", "session_id", sessionID, "message_id", messageID)
	return result, nil
}

// respond runs generate-or-refine and applies the fresh component plus the
// assistant turn to the session in memory.
func (s *SessionService) respond(ctx context.Context, session *models.ChatSession, prompt string, prior []models.Message) (*SendResult, error) {
	settings := session.Settings.Data()
	current := session.Current()

	var (
		component *models.Component
		meta      *models.MessageMeta
		err       error
	)
	verb := "created"
	if current != nil {
		verb = "refined"
		component, meta, err = s.generator.RefineComponent(ctx, prompt, current, prior, settings)
	} else {
		component, meta, err = s.generator.GenerateComponent(ctx, prompt, prior, settings)
	}
	if err != nil {
		return nil, err
	}

	applied := session.UpdateComponent(*component)
	assistantMsg := session.AddMessage(models.Message{
		Type:          models.MessageTypeAssistant,
		Content:       fmt.Sprintf("I've %s the %s component for you! %s", verb, applied.Name, applied.Description),
		ComponentCode: applied,
		Metadata:      meta,
	})

	return &SendResult{
		AssistantMessage: assistantMsg,
		Component:        applied,
		Session:          session,
	}, nil
}

// recordFailure persists the apology turn after a failed pipeline run and
// passes the generation error through to the caller.
func (s *SessionService) recordFailure(ctx context.Context, session *models.ChatSession, userMsg models.Message, genErr error) (*SendResult, error) {
	assistantMsg := session.AddMessage(models.Message{
		Type:    models.MessageTypeAssistant,
		Content: generationFailureReply,
	})
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	return &SendResult{
		UserMessage:      userMsg,
		AssistantMessage: assistantMsg,
		Session:          session,
	}, genErr
}

// ListMessages returns one page of the session's message log.
func (s *SessionService) ListMessages(ctx context.Context, userID, sessionID uuid.UUID, page, limit int) ([]models.Message, int, error) {
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, 0, err
	}

	total := len(session.Messages)
	start := (page - 1) * limit
	if start >= total {
		return []models.Message{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return session.Messages[start:end], total, nil
}

// EditMessage rewrites a user turn in place.
func (s *SessionService) EditMessage(ctx context.Context, userID, sessionID uuid.UUID, messageID, content string) (*models.Message, error) {
	session, err := s.loadMutable(userID, sessionID)
	if err != nil {
		return nil, err
	}
	msg, err := session.EditMessage(messageID, content)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx, session); err != nil {
		return nil, err
	}
	return msg, nil
}

// DeleteMessage removes one message from the log.
func (s *SessionService) DeleteMessage(ctx context.Context, userID, sessionID uuid.UUID, messageID string) error {
	session, err := s.loadMutable(userID, sessionID)
	if err != nil {
		return err
	}
	if err := session.DeleteMessage(messageID); err != nil {
		return err
	}
	return s.persist(ctx, session)
}

// recordUserUsage bumps the user's cumulative counters. Failures only log;
// usage accounting never fails the primary operation.
func (s *SessionService) recordUserUsage(ctx context.Context, userID uuid.UUID, sessions, components, tokens int) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		slog.Warn("usage update skipped", "user_id", userID, "error", err)
		return
	}
	user.RecordUsage(sessions, components, tokens)
	if err := s.db.Save(&user).Error; err != nil {
		slog.Warn("usage update failed", "user_id", userID, "error", err)
		return
	}
	s.cache.SetUser(ctx, &user)
}
