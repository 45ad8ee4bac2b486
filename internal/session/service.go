package session

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/containerd/errdefs"

	"github.com/asmaf9056/afatimachtbot36/internal/agent"
	"github.com/asmaf9056/afatimachtbot36/internal/domain"
	"github.com/asmaf9056/afatimachtbot36/internal/intent"
	"github.com/asmaf9056/afatimachtbot36/internal/metrics"
)

// Responder produces the assistant reply for a transcript.
type Responder interface {
	Respond(ctx context.Context, turns []domain.Turn) agent.Reply
}

// ChatResult is the outcome of one utterance.
type ChatResult struct {
	Reply    agent.Reply   `json:"reply"`
	Intent   intent.Result `json:"intent"`
	Snapshot Snapshot      `json:"session"`
}

// SubmitResult is the outcome of a submission. Snapshot is set even when the submission failed.
type SubmitResult struct {
	Confirmation *domain.Confirmation `json:"confirmation,omitempty"`
	Snapshot     Snapshot             `json:"session"`
}

type channelKey struct{}

// WithChannel tags ctx with the surface an action arrived on, for the conversation log.
func WithChannel(ctx context.Context, channel string) context.Context {
	return context.WithValue(ctx, channelKey{}, channel)
}

func channelFrom(ctx context.Context) string {
	if ch, ok := ctx.Value(channelKey{}).(string); ok && ch != "" {
		return ch
	}
	return "chat_http"
}

// Service applies visitor actions to sessions.
type Service struct {
	reg        *Registry
	responder  Responder
	classifier *intent.Classifier
	metrics    *metrics.Metrics
	convLog    agent.ConversationLogger
	logger     *slog.Logger
}

// NewService wires the session service. m and convLog may be nil.
func NewService(reg *Registry, responder Responder, classifier *intent.Classifier, m *metrics.Metrics, convLog agent.ConversationLogger, logger *slog.Logger) *Service {
	if classifier == nil {
		classifier = intent.New()
	}
	if convLog == nil {
		convLog = agent.NopConversationLogger()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		reg:        reg,
		responder:  responder,
		classifier: classifier,
		metrics:    m,
		convLog:    convLog,
		logger:     logger,
	}
}

// Registry returns the underlying registry.
func (s *Service) Registry() *Registry { return s.reg }

func (s *Service) acquire(key Key) (*Session, func(), error) {
	sess, release, err := s.reg.Acquire(key)
	if err != nil {
		return nil, nil, err
	}
	s.metrics.SetActiveSessions(s.reg.Len())
	return sess, release, nil
}

// Say appends the utterance, obtains a reply, appends it and re-evaluates enrollment intent.
// Empty text is rejected with errdefs.ErrInvalidArgument and changes nothing.
func (s *Service) Say(ctx context.Context, key Key, text string) (ChatResult, error) {
	sess, release, err := s.acquire(key)
	if err != nil {
		return ChatResult{}, err
	}
	defer release()
	m := sess.Machine()

	userTurn, err := m.AddUserTurn(text)
	if err != nil {
		return ChatResult{}, err
	}
	channel := channelFrom(ctx)
	s.logEvent(key, channel, "outbound", "chat_user_message", userTurn.Text, nil)

	reply := s.responder.Respond(ctx, m.Turns())
	result := s.classifier.Explain(userTurn.Text)
	if _, err := m.AddAssistantTurn(reply.Text, result.Enroll); err != nil {
		// Only an empty reply text gets here.
		return ChatResult{}, err
	}

	s.metrics.ObserveReply(string(reply.Source), reply.Latency, reply.Err != nil)
	if result.Enroll {
		s.metrics.ObserveIntent(string(result.Tier))
	}
	s.logger.Info("chat turn",
		"visitor_id", key.VisitorID,
		"session_id", key.SessionID,
		"source", reply.Source,
		"topic", reply.Topic,
		"enrollment_offered", result.Enroll,
		"intent_tier", result.Tier,
		"latency_ms", reply.Latency.Milliseconds(),
	)
	meta := map[string]any{
		"source":             reply.Source,
		"enrollment_offered": result.Enroll,
		"intent_tier":        result.Tier,
		"latency_ms":         reply.Latency.Milliseconds(),
	}
	if reply.Topic != "" {
		meta["topic"] = reply.Topic
	}
	if reply.Err != nil {
		meta["completion_error"] = reply.Err.Error()
	}
	s.logEvent(key, channel, "inbound", "chat_assistant_message", reply.Text, meta)

	return ChatResult{Reply: reply, Intent: result, Snapshot: m.Snapshot()}, nil
}

// OpenForm shows a fresh enrollment form.
func (s *Service) OpenForm(ctx context.Context, key Key) (Snapshot, error) {
	return s.transition(ctx, key, EventOpen, func(m *Machine) error { return m.Open() })
}

// UpdateDraft applies an edit to the open form.
func (s *Service) UpdateDraft(ctx context.Context, key Key, patch domain.DraftPatch) (Snapshot, error) {
	return s.transition(ctx, key, EventEdit, func(m *Machine) error { return m.Edit(patch) })
}

// CloseForm hides the form and discards the draft.
func (s *Service) CloseForm(ctx context.Context, key Key) (Snapshot, error) {
	return s.transition(ctx, key, EventClose, func(m *Machine) error {
		m.Close()
		return nil
	})
}

// Reset discards the session's transcript and form and starts over.
func (s *Service) Reset(ctx context.Context, key Key) (Snapshot, error) {
	sess, release, err := s.acquire(key)
	if err != nil {
		return Snapshot{}, err
	}
	defer release()
	s.reg.ResetMachine(sess)
	s.logger.Info("session reset", "visitor_id", key.VisitorID, "session_id", key.SessionID)
	s.logEvent(key, channelFrom(ctx), "outbound", agent.EventSessionReset, "", nil)
	return sess.Machine().Snapshot(), nil
}

// Snapshot returns the current session view, creating the session if needed.
func (s *Service) Snapshot(_ context.Context, key Key) (Snapshot, error) {
	sess, release, err := s.acquire(key)
	if err != nil {
		return Snapshot{}, err
	}
	defer release()
	return sess.Machine().Snapshot(), nil
}

// Submit optionally applies patch, then validates the draft. A rejected draft returns the
// validation error together with the updated snapshot.
func (s *Service) Submit(ctx context.Context, key Key, patch *domain.DraftPatch) (SubmitResult, error) {
	sess, release, err := s.acquire(key)
	if err != nil {
		return SubmitResult{}, err
	}
	defer release()
	m := sess.Machine()

	if patch != nil {
		if err := m.Edit(*patch); err != nil {
			s.metrics.ObserveTransition(EventEdit, err)
			return SubmitResult{Snapshot: m.Snapshot()}, err
		}
	}

	conf, err := m.Submit()
	s.metrics.ObserveTransition(EventSubmit, err)
	switch {
	case err == nil:
		s.metrics.ObserveSubmission("accepted")
		s.logger.Info("enrollment submitted",
			"visitor_id", key.VisitorID,
			"session_id", key.SessionID,
			"confirmation_id", conf.ID,
			"course", conf.Course,
		)
		s.logEvent(key, channelFrom(ctx), "outbound", "enrollment_submitted", conf.Summary, map[string]any{
			"confirmation_id": conf.ID,
			"course":          conf.Course,
		})
		return SubmitResult{Confirmation: &conf, Snapshot: m.Snapshot()}, nil
	case errdefs.IsInvalidArgument(err):
		s.metrics.ObserveSubmission("invalid")
		s.logger.Info("enrollment rejected", "visitor_id", key.VisitorID, "session_id", key.SessionID, "error", err)
	default:
		s.logger.Warn("enrollment submit refused", "visitor_id", key.VisitorID, "session_id", key.SessionID, "error", err)
	}
	return SubmitResult{Snapshot: m.Snapshot()}, err
}

func (s *Service) transition(ctx context.Context, key Key, event string, apply func(*Machine) error) (Snapshot, error) {
	sess, release, err := s.acquire(key)
	if err != nil {
		return Snapshot{}, err
	}
	defer release()
	m := sess.Machine()

	from := m.State()
	err = apply(m)
	s.metrics.ObserveTransition(event, err)
	if err != nil {
		level := slog.LevelInfo
		if !IsIllegalTransition(err) && !errors.Is(err, errdefs.ErrInvalidArgument) {
			level = slog.LevelWarn
		}
		s.logger.Log(ctx, level, "form event rejected",
			"visitor_id", key.VisitorID,
			"session_id", key.SessionID,
			"event", event,
			"state", from,
			"error", err,
		)
		return m.Snapshot(), err
	}
	s.logger.Debug("form event",
		"visitor_id", key.VisitorID,
		"session_id", key.SessionID,
		"event", event,
		"from", from,
		"to", m.State(),
	)
	if event != EventEdit {
		s.logEvent(key, channelFrom(ctx), "outbound", "form_"+event, "", map[string]any{"from": from, "to": m.State()})
	}
	return m.Snapshot(), nil
}

func (s *Service) logEvent(key Key, channel, direction, eventType, content string, meta map[string]any) {
	s.convLog.Log(agent.ConversationLogEvent{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		UserID:     key.VisitorID,
		SessionID:  key.SessionID,
		Channel:    channel,
		Direction:  direction,
		EventType:  eventType,
		ContentRaw: content,
		Meta:       meta,
	})
}

// Expire is the sweeper callback: it updates the gauge and records the expiry.
func (s *Service) Expire(key Key) {
	s.metrics.AddExpired(1)
	s.metrics.SetActiveSessions(s.reg.Len())
	s.logEvent(key, "sweeper", "outbound", agent.EventSessionExpired, "", nil)
}
