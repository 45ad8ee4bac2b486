package session

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/containerd/errdefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asmaf9056/afatimachtbot36/internal/agent"
	"github.com/asmaf9056/afatimachtbot36/internal/domain"
	"github.com/asmaf9056/afatimachtbot36/internal/intent"
	"github.com/asmaf9056/afatimachtbot36/internal/metrics"
)

type stubResponder struct {
	reply agent.Reply
	seen  [][]domain.Turn
}

func (s *stubResponder) Respond(_ context.Context, turns []domain.Turn) agent.Reply {
	s.seen = append(s.seen, turns)
	r := s.reply
	if r.Text == "" {
		r.Text = "Sure, I can help."
		r.Source = agent.ResponseTypeLLM
	}
	return r
}

type recordingLogger struct {
	events []agent.ConversationLogEvent
}

func (r *recordingLogger) Log(e agent.ConversationLogEvent) { r.events = append(r.events, e) }
func (r *recordingLogger) Close() error                     { return nil }

func (r *recordingLogger) types() []string {
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.EventType)
	}
	return out
}

func newTestService(t *testing.T) (*Service, *stubResponder, *recordingLogger) {
	t.Helper()
	resp := &stubResponder{}
	rec := &recordingLogger{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := NewService(NewRegistry(newTestMachine), resp, intent.New(), metrics.New(prometheus.NewRegistry()), rec, logger)
	return svc, resp, rec
}

var testKey = Key{VisitorID: "visitor", SessionID: "tab"}

func TestSayAppendsTurnsAndClassifies(t *testing.T) {
	svc, resp, rec := newTestService(t)
	ctx := context.Background()

	res, err := svc.Say(ctx, testKey, "I want to enroll in the Python bootcamp")
	require.NoError(t, err)
	assert.True(t, res.Intent.Enroll)
	assert.Equal(t, intent.TierStrong, res.Intent.Tier)
	assert.True(t, res.Snapshot.EnrollmentOffered)
	require.Len(t, res.Snapshot.Transcript, 2)
	assert.Equal(t, domain.RoleUser, res.Snapshot.Transcript[0].Role)
	assert.Equal(t, domain.RoleAssistant, res.Snapshot.Transcript[1].Role)
	assert.Equal(t, StateIdle, res.Snapshot.State)

	require.Len(t, resp.seen, 1)
	assert.Len(t, resp.seen[0], 1, "responder sees the transcript including the new utterance")
	assert.Equal(t, []string{"chat_user_message", "chat_assistant_message"}, rec.types())
	assert.Equal(t, "chat_http", rec.events[0].Channel)
}

func TestSayEmptyRejected(t *testing.T) {
	svc, resp, _ := newTestService(t)
	_, err := svc.Say(context.Background(), testKey, "  ")
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.Empty(t, resp.seen)

	snap, err := svc.Snapshot(context.Background(), testKey)
	require.NoError(t, err)
	assert.Empty(t, snap.Transcript)
}

func TestSayFallbackReplyCarriesNotice(t *testing.T) {
	svc, resp, rec := newTestService(t)
	resp.reply = agent.Reply{Text: "Fees depend on the course.", Source: agent.ResponseTypePattern, Topic: "pricing", Notice: "offline"}

	ctx := WithChannel(context.Background(), "chat_ws")
	res, err := svc.Say(ctx, testKey, "How much does the GenAI bootcamp cost?")
	require.NoError(t, err)
	assert.Equal(t, agent.ResponseTypePattern, res.Reply.Source)
	assert.Equal(t, "offline", res.Reply.Notice)
	assert.False(t, res.Snapshot.EnrollmentOffered)
	assert.Equal(t, "chat_ws", rec.events[1].Channel)
	assert.Equal(t, "pricing", rec.events[1].Meta["topic"])
}

func TestEnrollmentFlowEndToEnd(t *testing.T) {
	svc, _, rec := newTestService(t)
	ctx := context.Background()

	_, err := svc.OpenForm(ctx, testKey)
	assert.True(t, errdefs.IsFailedPrecondition(err), "no intent yet")

	_, err = svc.Say(ctx, testKey, "sign me up please")
	require.NoError(t, err)

	snap, err := svc.OpenForm(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, StateFormOpen, snap.State)
	require.NotNil(t, snap.Draft)
	assert.Equal(t, domain.ExperienceBeginner, snap.Draft.ExperienceLevel)

	snap, err = svc.UpdateDraft(ctx, testKey, domain.DraftPatch{FullName: strPtr("Ali Khan")})
	require.NoError(t, err)
	assert.Equal(t, "Ali Khan", snap.Draft.FullName)

	res, err := svc.Submit(ctx, testKey, nil)
	require.Error(t, err)
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.Equal(t, StateSubmittedInvalid, res.Snapshot.State)
	assert.NotEmpty(t, res.Snapshot.FieldErrors)
	assert.Nil(t, res.Confirmation)

	p := completePatch()
	res, err = svc.Submit(ctx, testKey, &p)
	require.NoError(t, err)
	require.NotNil(t, res.Confirmation)
	assert.Equal(t, "Ali Khan", res.Confirmation.FullName)
	assert.Equal(t, StateSubmittedValid, res.Snapshot.State)

	_, err = svc.Submit(ctx, testKey, nil)
	assert.True(t, errdefs.IsFailedPrecondition(err), "a click submits exactly once")

	snap, err = svc.CloseForm(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, snap.State)
	assert.Nil(t, snap.Draft)

	assert.Contains(t, rec.types(), "enrollment_submitted")
	assert.Contains(t, rec.types(), "form_open")
	assert.Contains(t, rec.types(), "form_close")
}

func TestSubmitWithInvalidPatch(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Say(ctx, testKey, "ready to enroll")
	require.NoError(t, err)
	_, err = svc.OpenForm(ctx, testKey)
	require.NoError(t, err)

	bad := domain.DraftPatch{ExperienceLevel: strPtr("expert")}
	res, err := svc.Submit(ctx, testKey, &bad)
	assert.True(t, errdefs.IsInvalidArgument(err))
	assert.Equal(t, StateFormOpen, res.Snapshot.State)
}

func TestResetStartsFreshSession(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()
	_, err := svc.Say(ctx, testKey, "i want to enroll")
	require.NoError(t, err)
	_, err = svc.OpenForm(ctx, testKey)
	require.NoError(t, err)

	snap, err := svc.Reset(ctx, testKey)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, snap.State)
	assert.Empty(t, snap.Transcript)
	assert.False(t, snap.EnrollmentOffered)
}

func TestBusySessionConflict(t *testing.T) {
	svc, _, _ := newTestService(t)
	_, release, err := svc.Registry().Acquire(testKey)
	require.NoError(t, err)
	defer release()

	_, err = svc.Say(context.Background(), testKey, "hello")
	assert.True(t, errdefs.IsConflict(err))
}

func TestExpireRecordsEvent(t *testing.T) {
	svc, _, rec := newTestService(t)
	svc.Expire(testKey)
	assert.Equal(t, []string{"session_expired"}, rec.types())
}
