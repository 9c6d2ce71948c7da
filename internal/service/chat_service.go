package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"fraud-advisor/backend/internal/chatbot"
	"fraud-advisor/backend/internal/models"
	"fraud-advisor/backend/internal/repository"
	"fraud-advisor/backend/pkg/cache"
	"fraud-advisor/backend/pkg/logger"
	"fraud-advisor/backend/shared/observability"
)

// EventType names a live-channel notification
type EventType string

const (
	EventExchange EventType = "exchange"
	EventStatus   EventType = "status"
)

// Event is published after a committed change to a session
type Event struct {
	Type      EventType           `json:"type"`
	SessionID string              `json:"session_id"`
	Session   *models.ChatSession `json:"session,omitempty"`
	Exchange  *ExchangeResult     `json:"exchange,omitempty"`
}

// Notifier receives session events; delivery is best effort
type Notifier interface {
	Publish(ev Event)
}

type nopNotifier struct{}

func (nopNotifier) Publish(Event) {}

// ChatOptions tunes the pipeline
type ChatOptions struct {
	HistoryWindow    int
	MaxMessageLength int
	IdempotencyTTL   time.Duration
}

// DefaultChatOptions returns the stock tuning
func DefaultChatOptions() ChatOptions {
	return ChatOptions{
		HistoryWindow:    10,
		MaxMessageLength: 4000,
		IdempotencyTTL:   24 * time.Hour,
	}
}

// CreateSessionInput carries the optional fields of a new session
type CreateSessionInput struct {
	VulnerabilityFactors []string
	FraudType            string
	InitialMessage       string
}

// CreateSessionResult is the new session with its greeting and, when an
// initial message was given, the first exchange
type CreateSessionResult struct {
	Session  *models.ChatSession `json:"session"`
	Greeting *models.ChatMessage `json:"greeting"`
	Exchange *ExchangeResult     `json:"exchange,omitempty"`
	// InitialMessageErr is set when the session was created but its initial
	// message was not recorded; the caller can resend it on Session.
	InitialMessageErr error `json:"-"`
}

// ExchangeResult is one persisted user/bot turn
type ExchangeResult struct {
	Session          *models.ChatSession    `json:"session"`
	UserMessage      *models.ChatMessage    `json:"user_message"`
	BotMessage       *models.ChatMessage    `json:"bot_message"`
	Classification   chatbot.Classification `json:"classification"`
	Escalated        bool                   `json:"escalated"`
	EscalationReason string                 `json:"escalation_reason,omitempty"`
	Replayed         bool                   `json:"-"`
}

// ChatService owns the session lifecycle and the message pipeline
type ChatService struct {
	store      *repository.Store
	classifier *chatbot.Classifier
	escalator  *chatbot.Escalator
	responder  *chatbot.Responder
	cache      cache.Store
	metrics    *observability.ChatMetrics
	notifier   Notifier
	log        *logger.Logger
	opts       ChatOptions
	now        func() time.Time
}

// ChatDeps are the collaborators of ChatService. Nil optional fields get no-op defaults.
type ChatDeps struct {
	Store      *repository.Store
	Classifier *chatbot.Classifier
	Escalator  *chatbot.Escalator
	Responder  *chatbot.Responder
	Cache      cache.Store
	Metrics    *observability.ChatMetrics
	Notifier   Notifier
	Logger     *logger.Logger
}

// NewChatService wires the pipeline
func NewChatService(deps ChatDeps, opts ChatOptions) *ChatService {
	s := &ChatService{
		store:      deps.Store,
		classifier: deps.Classifier,
		escalator:  deps.Escalator,
		responder:  deps.Responder,
		cache:      deps.Cache,
		metrics:    deps.Metrics,
		notifier:   deps.Notifier,
		log:        deps.Logger,
		opts:       opts,
		now:        func() time.Time { return time.Now().UTC() },
	}
	if s.classifier == nil {
		s.classifier = chatbot.NewClassifier(chatbot.DefaultPolicy())
	}
	if s.escalator == nil {
		s.escalator = chatbot.NewEscalator(nil)
	}
	if s.log == nil {
		s.log = logger.GetGlobal()
	}
	if s.responder == nil {
		s.responder = chatbot.NewResponder(nil, s.log)
	}
	if s.cache == nil {
		s.cache = cache.NewCache(10000, time.Minute)
	}
	if s.metrics == nil {
		s.metrics = observability.NopChatMetrics()
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	defaults := DefaultChatOptions()
	if s.opts.HistoryWindow <= 0 {
		s.opts.HistoryWindow = defaults.HistoryWindow
	}
	if s.opts.MaxMessageLength <= 0 {
		s.opts.MaxMessageLength = defaults.MaxMessageLength
	}
	if s.opts.IdempotencyTTL <= 0 {
		s.opts.IdempotencyTTL = defaults.IdempotencyTTL
	}
	return s
}

// SetNotifier replaces the event sink. Call before serving traffic.
func (s *ChatService) SetNotifier(n Notifier) {
	if n == nil {
		n = nopNotifier{}
	}
	s.notifier = n
}

// CreateSession opens an active low-risk session and stores the greeting
func (s *ChatService) CreateSession(ctx context.Context, actor Actor, in CreateSessionInput) (*CreateSessionResult, error) {
	factors, err := normalizeFactors(in.VulnerabilityFactors)
	if err != nil {
		return nil, err
	}
	initial := strings.TrimSpace(in.InitialMessage)
	if initial != "" {
		if err := s.validateContent(initial); err != nil {
			return nil, err
		}
	}

	var fraudType models.FraudType
	if ft := strings.TrimSpace(in.FraudType); ft != "" {
		fraudType = models.ParseFraudType(ft)
	}

	now := s.now()
	session := &models.ChatSession{
		SessionID:            uuid.NewString(),
		UserID:               actor.UserID,
		Status:               models.SessionActive,
		RiskLevel:            models.RiskLow,
		FraudType:            fraudType,
		VulnerabilityFactors: factors,
		LastActivity:         now,
	}
	greeting := &models.ChatMessage{
		MessageType: models.MessageBot,
		Content:     chatbot.GreetingFor(factors),
		Metadata:    map[string]any{"response_source": "greeting"},
		AIModel:     ptr("template"),
		CreatedAt:   now,
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		if err := tx.Sessions.Create(ctx, session); err != nil {
			return err
		}
		greeting.SessionID = session.ID
		return tx.Messages.Create(ctx, greeting)
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	s.log.WithSessionID(session.SessionID).Info("Chat session created",
		"factors", factors,
		"fraudType", string(fraudType),
	)

	result := &CreateSessionResult{Session: session, Greeting: greeting}
	if initial != "" {
		ex, err := s.SendMessage(ctx, actor, session.SessionID, initial, "")
		if err != nil {
			s.log.WithSessionID(session.SessionID).Warn("Initial message not recorded", "error", err.Error())
			result.InitialMessageErr = err
			return result, nil
		}
		result.Session = ex.Session
		result.Exchange = ex
	}
	return result, nil
}

// GetSession returns a session the actor may see
func (s *ChatService) GetSession(ctx context.Context, actor Actor, sessionID string) (*models.ChatSession, error) {
	session, err := s.store.Sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if !actor.CanSee(session) {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// ListSessions restricts non-admin callers to their own sessions
func (s *ChatService) ListSessions(ctx context.Context, actor Actor, filter repository.SessionFilter) ([]models.ChatSession, int64, error) {
	if !actor.Admin {
		if actor.UserID == nil {
			return []models.ChatSession{}, 0, nil
		}
		filter.UserID = actor.UserID
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, validationError("unknown status %q", filter.Status)
	}
	if filter.RiskLevel != "" && !filter.RiskLevel.Valid() {
		return nil, 0, validationError("unknown risk level %q", filter.RiskLevel)
	}
	return s.store.Sessions.List(ctx, filter)
}

// ListMessages pages a session's messages oldest first
func (s *ChatService) ListMessages(ctx context.Context, actor Actor, sessionID string, page repository.Page) ([]models.ChatMessage, int64, error) {
	session, err := s.GetSession(ctx, actor, sessionID)
	if err != nil {
		return nil, 0, err
	}
	return s.store.Messages.ListBySession(ctx, session.ID, page)
}

// SendMessage runs classify, escalate-check and respond, then persists the
// exchange atomically. No lock is held while the reply is generated; the
// session status is re-checked under the row lock before writing.
func (s *ChatService) SendMessage(ctx context.Context, actor Actor, sessionID, content, idempotencyKey string) (*ExchangeResult, error) {
	content = strings.TrimSpace(content)
	if err := s.validateContent(content); err != nil {
		return nil, err
	}

	session, err := s.GetSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status.IsTerminal() {
		return nil, ErrSessionClosed
	}

	var idemKey string
	if idempotencyKey != "" {
		idemKey = "idempotency:" + sessionID + ":" + idempotencyKey
		replay, err := s.claimIdempotencyKey(ctx, idemKey)
		if err != nil || replay != nil {
			return replay, err
		}
	}

	var result *ExchangeResult
	if idemKey != "" {
		// settles on panic too, otherwise the key stays pending for the whole TTL
		defer func() { s.settleIdempotencyKey(ctx, idemKey, result, err) }()
	}

	result, err = s.exchange(ctx, session, content)
	if err != nil {
		return nil, err
	}

	s.afterExchange(ctx, result)
	return result, nil
}

func (s *ChatService) exchange(ctx context.Context, session *models.ChatSession, content string) (*ExchangeResult, error) {
	log := s.log.WithSessionID(session.SessionID)

	classification := s.classifier.Classify(content, session.FraudType, session.VulnerabilityFactors)

	history, err := s.store.Messages.Recent(ctx, session.ID, s.opts.HistoryWindow)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}

	reply, err := s.responder.Select(ctx, content, chatbot.SessionContext{
		History: history,
		Factors: session.VulnerabilityFactors,
	}, classification)
	if err != nil {
		log.Warn("Exchange abandoned before persistence", "error", err.Error())
		return nil, err
	}

	decision := s.escalator.Decide(classification, session.VulnerabilityFactors, false)

	now := s.now()
	userMsg := &models.ChatMessage{
		MessageType: models.MessageUser,
		Content:     content,
		Metadata: map[string]any{
			"risk_level":       string(classification.RiskLevel),
			"fraud_type":       string(classification.FraudType),
			"confidence":       classification.Confidence,
			"matched_keywords": classification.MatchedKeywords,
		},
		CreatedAt: now,
	}
	botMeta := reply.Metadata
	botMeta["escalation_needed"] = decision.Escalate
	if decision.Escalate {
		botMeta["escalation_reason"] = decision.Reason
	}
	botMsg := &models.ChatMessage{
		MessageType:  models.MessageBot,
		Content:      reply.Content,
		Metadata:     botMeta,
		AIModel:      ptr(reply.Model),
		AIConfidence: ptr(reply.Confidence),
		AIReasoning:  ptr(reply.Reasoning),
		CreatedAt:    now.Add(time.Microsecond),
	}

	result := &ExchangeResult{
		UserMessage:    userMsg,
		BotMessage:     botMsg,
		Classification: classification,
	}

	err = s.store.Transaction(ctx, func(tx *repository.Store) error {
		locked, err := tx.Sessions.GetForUpdate(ctx, session.SessionID)
		if err != nil {
			return err
		}
		if locked.Status.IsTerminal() {
			return ErrSessionClosed
		}

		userMsg.SessionID = locked.ID
		botMsg.SessionID = locked.ID
		if err := tx.Messages.Create(ctx, userMsg, botMsg); err != nil {
			return err
		}

		locked.LastActivity = now
		locked.RiskLevel = locked.RiskLevel.Max(classification.RiskLevel)

		// a concurrent exchange may already have escalated; skip side effects then
		if decision.Escalate && locked.Status == models.SessionActive {
			if err := s.escalateLocked(ctx, tx, locked, decision.Reason, now); err != nil {
				return err
			}
			result.Escalated = true
			result.EscalationReason = decision.Reason
		}

		if err := tx.Sessions.Save(ctx, locked); err != nil {
			return err
		}
		result.Session = locked
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrSessionClosed) {
			return nil, err
		}
		return nil, fmt.Errorf("persist exchange: %w", err)
	}

	if result.Escalated {
		s.metrics.RecordEscalation(ctx, string(decision.Trigger))
		log.Info("Chat session escalated",
			"trigger", string(decision.Trigger),
			"reason", decision.Reason,
			"advisor", deref(result.Session.EscalatedTo),
		)
	}
	log.Info("Chat exchange recorded",
		"risk", string(classification.RiskLevel),
		"fraudType", string(classification.FraudType),
		"source", string(reply.Source),
	)
	s.metrics.RecordExchange(ctx, string(classification.RiskLevel))
	s.metrics.RecordResponse(ctx, string(reply.Source))
	return result, nil
}

func (s *ChatService) afterExchange(_ context.Context, result *ExchangeResult) {
	s.notifier.Publish(Event{
		Type:      EventExchange,
		SessionID: result.Session.SessionID,
		Exchange:  result,
	})
	if result.Escalated {
		s.publishStatus(result.Session)
	}
}

// escalateLocked moves a locked active session to escalated and assigns an advisor.
// Must run inside the transaction that holds the row lock.
func (s *ChatService) escalateLocked(ctx context.Context, tx *repository.Store, session *models.ChatSession, reason string, now time.Time) error {
	session.Status = models.SessionEscalated
	session.EscalationReason = ptr(reason)
	session.EscalatedAt = ptr(now)

	advisor, err := tx.Advisors.AcquireLeastLoaded(ctx)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		s.log.WithSessionID(session.SessionID).Warn("No security advisor available for escalated session")
		session.EscalatedTo = nil
	case err != nil:
		return fmt.Errorf("assign advisor: %w", err)
	default:
		session.EscalatedTo = ptr(advisor.Email)
	}

	return tx.Messages.Create(ctx, &models.ChatMessage{
		SessionID:   session.ID,
		MessageType: models.MessageSystem,
		Content:     "Session escalated to a human security advisor: " + reason,
		Metadata: map[string]any{
			"escalation_reason": reason,
			"escalated_to":      deref(session.EscalatedTo),
		},
		CreatedAt: now.Add(2 * time.Microsecond),
	})
}

// Escalate hands the session to a human on the caller's request
func (s *ChatService) Escalate(ctx context.Context, actor Actor, sessionID string) (*models.ChatSession, error) {
	session, err := s.transition(ctx, actor, sessionID, models.SessionEscalated, func(tx *repository.Store, locked *models.ChatSession, now time.Time) error {
		return s.escalateLocked(ctx, tx, locked, chatbot.ManualEscalationReason, now)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordEscalation(ctx, string(chatbot.TriggerManual))
	s.log.WithSessionID(sessionID).Info("Chat session escalated",
		"trigger", string(chatbot.TriggerManual),
		"advisor", deref(session.EscalatedTo),
	)
	s.publishStatus(session)
	return session, nil
}

// Close ends the session and frees its advisor slot
func (s *ChatService) Close(ctx context.Context, actor Actor, sessionID string) (*models.ChatSession, error) {
	session, err := s.transition(ctx, actor, sessionID, models.SessionClosed, func(tx *repository.Store, locked *models.ChatSession, now time.Time) error {
		if err := s.releaseAdvisor(ctx, tx, locked); err != nil {
			return err
		}
		locked.Status = models.SessionClosed
		locked.ClosedAt = ptr(now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithSessionID(sessionID).Info("Chat session closed")
	s.publishStatus(session)
	return session, nil
}

// Archive retires a session administratively
func (s *ChatService) Archive(ctx context.Context, actor Actor, sessionID string) (*models.ChatSession, error) {
	if !actor.Admin {
		return nil, ErrForbidden
	}
	session, err := s.transition(ctx, actor, sessionID, models.SessionArchived, func(tx *repository.Store, locked *models.ChatSession, now time.Time) error {
		// closing already released the slot
		if locked.Status != models.SessionClosed {
			if err := s.releaseAdvisor(ctx, tx, locked); err != nil {
				return err
			}
		}
		locked.Status = models.SessionArchived
		if locked.ClosedAt == nil {
			locked.ClosedAt = ptr(now)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithSessionID(sessionID).Info("Chat session archived")
	s.publishStatus(session)
	return session, nil
}

// transition locks the session, validates from->to and lets apply mutate it
func (s *ChatService) transition(
	ctx context.Context,
	actor Actor,
	sessionID string,
	to models.SessionStatus,
	apply func(tx *repository.Store, locked *models.ChatSession, now time.Time) error,
) (*models.ChatSession, error) {
	var out *models.ChatSession
	err := s.store.Transaction(ctx, func(tx *repository.Store) error {
		locked, err := tx.Sessions.GetForUpdate(ctx, sessionID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrSessionNotFound
			}
			return err
		}
		if !actor.CanSee(locked) {
			return ErrSessionNotFound
		}
		if err := checkTransition(locked.Status, to); err != nil {
			return err
		}

		now := s.now()
		if err := apply(tx, locked, now); err != nil {
			return err
		}
		locked.LastActivity = now
		if err := tx.Sessions.Save(ctx, locked); err != nil {
			return err
		}
		out = locked
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ChatService) releaseAdvisor(ctx context.Context, tx *repository.Store, session *models.ChatSession) error {
	if session.EscalatedTo == nil || *session.EscalatedTo == "" {
		return nil
	}
	if err := tx.Advisors.Release(ctx, *session.EscalatedTo); err != nil {
		return fmt.Errorf("release advisor: %w", err)
	}
	return nil
}

// RecordFeedback stores the user's verdict on one message of the session
func (s *ChatService) RecordFeedback(ctx context.Context, actor Actor, sessionID string, messageID uint, feedback *models.Feedback, isHelpful *bool) (*models.ChatMessage, error) {
	if feedback == nil && isHelpful == nil {
		return nil, validationError("feedback or is_helpful is required")
	}
	if feedback != nil && !feedback.Valid() {
		return nil, validationError("unknown feedback %q", *feedback)
	}

	session, err := s.GetSession(ctx, actor, sessionID)
	if err != nil {
		return nil, err
	}

	msg, err := s.store.Messages.GetInSession(ctx, session.ID, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}

	if feedback != nil {
		msg.UserFeedback = feedback
	}
	if isHelpful != nil {
		msg.IsHelpful = isHelpful
	}
	if err := s.store.Messages.UpdateFeedback(ctx, msg); err != nil {
		return nil, fmt.Errorf("record feedback: %w", err)
	}
	return msg, nil
}

func (s *ChatService) validateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return validationError("message content must not be empty")
	}
	if n := utf8.RuneCountInString(content); n > s.opts.MaxMessageLength {
		return validationError("message is %d characters, the limit is %d", n, s.opts.MaxMessageLength)
	}
	return nil
}

var pendingMarker = []byte("pending")

// claimIdempotencyKey returns a stored result to replay, or reserves the key
func (s *ChatService) claimIdempotencyKey(ctx context.Context, key string) (*ExchangeResult, error) {
	ok, err := s.cache.SetNX(ctx, key, pendingMarker, s.opts.IdempotencyTTL)
	if err != nil {
		// the pipeline still runs; only replay protection is lost
		s.log.Warn("Idempotency store unavailable", "error", err.Error())
		return nil, nil
	}
	if ok {
		return nil, nil
	}

	raw, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrRequestInProgress
		}
		return nil, err
	}
	if string(raw) == string(pendingMarker) {
		return nil, ErrRequestInProgress
	}

	var replay ExchangeResult
	if err := json.Unmarshal(raw, &replay); err != nil {
		return nil, fmt.Errorf("decode idempotent response: %w", err)
	}
	replay.Replayed = true
	return &replay, nil
}

func (s *ChatService) settleIdempotencyKey(ctx context.Context, key string, result *ExchangeResult, runErr error) {
	// the caller may be gone; the key must still be settled
	ctx = context.WithoutCancel(ctx)
	if runErr != nil || result == nil {
		_ = s.cache.Delete(ctx, key)
		return
	}
	raw, err := json.Marshal(result)
	if err == nil {
		err = s.cache.Set(ctx, key, raw, s.opts.IdempotencyTTL)
	}
	if err != nil {
		s.log.Warn("Failed to store idempotent response", "error", err.Error())
	}
}

func (s *ChatService) publishStatus(session *models.ChatSession) {
	s.notifier.Publish(Event{
		Type:      EventStatus,
		SessionID: session.SessionID,
		Session:   session,
	})
}

func ptr[T any](v T) *T {
	return &v
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
