package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ventureai/internal/sessions"
)

type memStore struct {
	sessions map[string]*sessions.Session
	appended []sessions.Event
	lastGet  sessions.GetRequest
}

func (m *memStore) CreateSession(ctx context.Context, req sessions.CreateRequest) (*sessions.Session, error) {
	s := &sessions.Session{ID: "new", AppName: req.AppName, UserID: req.UserID, State: req.State}
	m.sessions[s.ID] = s
	return s, nil
}

func (m *memStore) GetSession(ctx context.Context, req sessions.GetRequest) (*sessions.Session, error) {
	m.lastGet = req
	s, ok := m.sessions[req.SessionID]
	if !ok || s.UserID != req.UserID || s.AppName != req.AppName {
		return nil, sessions.ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ListSessions(ctx context.Context, app, user string) ([]sessions.Session, error) {
	var out []sessions.Session
	for _, s := range m.sessions {
		if s.AppName == app && s.UserID == user {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (m *memStore) AppendEvent(ctx context.Context, s *sessions.Session, e *sessions.Event) (*sessions.Event, error) {
	m.appended = append(m.appended, *e)
	s.Events = append(s.Events, *e)
	return e, nil
}

type scriptedRuntime struct {
	chunks []string
	err    error
	got    Request
}

func (r *scriptedRuntime) Stream(ctx context.Context, req Request, fn func(Chunk) error) error {
	r.got = req
	for _, c := range r.chunks {
		if err := fn(Chunk{Text: c}); err != nil {
			return err
		}
	}
	return r.err
}

func newMemStore() *memStore {
	return &memStore{sessions: map[string]*sessions.Session{
		"s1": {
			ID: "s1", AppName: "ventureai", UserID: "u1", State: map[string]any{},
			Events: []sessions.Event{
				{Author: "user", Content: &sessions.Content{Role: RoleUser, Parts: []sessions.Part{{Text: "hello"}}}},
				{Author: "ventureai", Partial: true, Content: &sessions.Content{Role: RoleModel, Parts: []sessions.Part{{Text: "hal"}}}},
				{Author: "ventureai", Content: &sessions.Content{Role: RoleModel, Parts: []sessions.Part{{Text: "hi there"}}}},
				{Author: "ventureai", ErrorCode: "X"},
			},
		},
	}}
}

func TestStreamQuery(t *testing.T) {
	store := newMemStore()
	rt := &scriptedRuntime{chunks: []string{"```json\n{", `"a": 1}`, "\n```"}}
	app := NewApp("ventureai", store, rt, ManagerInstruction)

	var seen []Chunk
	reply, err := app.StreamQuery(context.Background(), "u1", "s1", UserMessage("analyze", sessions.Part{MIMEType: "application/pdf", Data: []byte("pdf")}), func(c Chunk) error {
		seen = append(seen, c)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "```json\n{\"a\": 1}\n```", reply)
	assert.Len(t, seen, 3)
	assert.Equal(t, 40, store.lastGet.NumRecentEvents)

	assert.Equal(t, ManagerInstruction, rt.got.System)
	require.Len(t, rt.got.History, 2, "partial and content-less events are not replayed")
	assert.Equal(t, "hello", rt.got.History[0].Text())
	assert.Equal(t, "hi there", rt.got.History[1].Text())

	require.Len(t, store.appended, 2)
	user, agentEv := store.appended[0], store.appended[1]
	assert.Equal(t, "user", user.Author)
	assert.Equal(t, user.InvocationID, agentEv.InvocationID)
	assert.Equal(t, "ventureai", agentEv.Author)
	assert.True(t, agentEv.TurnComplete)
	assert.Equal(t, reply, agentEv.Content.Text())

	raw, err := ParseJSONResponse(reply)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1}`, string(raw))
}

func TestStreamQueryUnknownSession(t *testing.T) {
	app := NewApp("ventureai", newMemStore(), &scriptedRuntime{}, "")
	_, err := app.StreamQuery(context.Background(), "someone-else", "s1", UserMessage("hi"), nil)
	assert.ErrorIs(t, err, sessions.ErrSessionNotFound)
}

func TestStreamQueryRuntimeFailureRecorded(t *testing.T) {
	store := newMemStore()
	app := NewApp("ventureai", store, &scriptedRuntime{err: errors.New("throttled")}, "")
	_, err := app.StreamQuery(context.Background(), "u1", "s1", UserMessage("hi"), nil)
	require.ErrorContains(t, err, "throttled")

	require.Len(t, store.appended, 2)
	assert.Equal(t, "STREAM_FAILED", store.appended[1].ErrorCode)
}

func TestWithInstructionSharesSessions(t *testing.T) {
	store := newMemStore()
	rt := &scriptedRuntime{chunks: []string{"answer"}}
	base := NewApp("ventureai", store, rt, ManagerInstruction)
	qa := base.WithInstruction(InvestorQueryInstruction)

	_, err := qa.StreamQuery(context.Background(), "u1", "s1", UserMessage("why?"), nil)
	require.NoError(t, err)
	assert.Equal(t, InvestorQueryInstruction, rt.got.System)
	assert.Equal(t, "ventureai", qa.Name())
	assert.Equal(t, ManagerInstruction, base.instruction)
}

func TestInvestorQuestion(t *testing.T) {
	q := InvestorQuestion("  What is the round size? ", map[string]any{"round_size": "INR 5 Crores"})
	assert.Contains(t, q, `"round_size": "INR 5 Crores"`)
	assert.Contains(t, q, "QUESTION:\nWhat is the round size?")
	assert.Contains(t, InvestorQuestion("q", nil), "(no analysis found)")
}
