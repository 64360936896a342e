package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"ventureai/internal/logging"
	"ventureai/internal/sessions"
)

type SessionStore interface {
	CreateSession(ctx context.Context, req sessions.CreateRequest) (*sessions.Session, error)
	GetSession(ctx context.Context, req sessions.GetRequest) (*sessions.Session, error)
	ListSessions(ctx context.Context, app, user string) ([]sessions.Session, error)
	AppendEvent(ctx context.Context, sess *sessions.Session, e *sessions.Event) (*sessions.Event, error)
}

var _ SessionStore = (*sessions.Store)(nil)

// App is a session-aware agent: every query is recorded as a user event
// followed by one complete agent event.
type App struct {
	name        string
	store       SessionStore
	runtime     Runtime
	instruction string
	// historyEvents bounds how many stored events are replayed to the model.
	historyEvents int
}

func NewApp(name string, store SessionStore, runtime Runtime, instruction string) *App {
	return &App{
		name:          name,
		store:         store,
		runtime:       runtime,
		instruction:   instruction,
		historyEvents: 40,
	}
}

func (a *App) Name() string { return a.name }

// WithInstruction returns an App sharing sessions and runtime but driven by a
// different system instruction.
func (a *App) WithInstruction(instruction string) *App {
	cp := *a
	cp.instruction = instruction
	return &cp
}

func (a *App) ListSessions(ctx context.Context, userID string) ([]sessions.Session, error) {
	return a.store.ListSessions(ctx, a.name, userID)
}

func (a *App) CreateSession(ctx context.Context, userID string, state map[string]any) (*sessions.Session, error) {
	return a.store.CreateSession(ctx, sessions.CreateRequest{AppName: a.name, UserID: userID, State: state})
}

// GetSession loads a session's state without replaying its events.
func (a *App) GetSession(ctx context.Context, userID, sessionID string) (*sessions.Session, error) {
	return a.store.GetSession(ctx, sessions.GetRequest{
		AppName:         a.name,
		UserID:          userID,
		SessionID:       sessionID,
		NumRecentEvents: 1,
	})
}

// StreamQuery sends msg within the given session. fn receives chunks as they
// arrive; the full reply is returned once the turn completes.
func (a *App) StreamQuery(ctx context.Context, userID, sessionID string, msg sessions.Content, fn func(Chunk) error) (string, error) {
	sess, err := a.store.GetSession(ctx, sessions.GetRequest{
		AppName:         a.name,
		UserID:          userID,
		SessionID:       sessionID,
		NumRecentEvents: a.historyEvents,
	})
	if err != nil {
		return "", err
	}

	history := historyFrom(sess.Events)
	invocationID := "e-" + uuid.NewString()
	log := logging.Logger.With().Str("session_id", sessionID).Str("invocation_id", invocationID).Logger()

	if msg.Role == "" {
		msg.Role = RoleUser
	}
	if _, err := a.store.AppendEvent(ctx, sess, &sessions.Event{
		Author:       RoleUser,
		InvocationID: invocationID,
		Content:      &msg,
	}); err != nil {
		return "", fmt.Errorf("record user message: %w", err)
	}

	var full strings.Builder
	streamErr := a.runtime.Stream(ctx, Request{System: a.instruction, History: history, Message: msg}, func(c Chunk) error {
		full.WriteString(c.Text)
		if fn != nil {
			return fn(c)
		}
		return nil
	})
	if streamErr != nil {
		if _, err := a.store.AppendEvent(ctx, sess, &sessions.Event{
			Author:       a.name,
			InvocationID: invocationID,
			ErrorCode:    "STREAM_FAILED",
			ErrorMessage: streamErr.Error(),
			TurnComplete: true,
		}); err != nil {
			log.Warn().Err(err).Msg("failed to record stream error")
		}
		return "", fmt.Errorf("stream query: %w", streamErr)
	}

	reply := full.String()
	if _, err := a.store.AppendEvent(ctx, sess, &sessions.Event{
		Author:       a.name,
		InvocationID: invocationID,
		Content:      &sessions.Content{Role: RoleModel, Parts: []sessions.Part{{Text: reply}}},
		TurnComplete: true,
	}); err != nil {
		return "", fmt.Errorf("record agent reply: %w", err)
	}

	log.Debug().Int("reply_bytes", len(reply)).Msg("turn complete")
	return reply, nil
}

func historyFrom(events []sessions.Event) []sessions.Content {
	out := make([]sessions.Content, 0, len(events))
	for _, e := range events {
		if e.Partial || e.Content == nil || len(e.Content.Parts) == 0 {
			continue
		}
		out = append(out, *e.Content)
	}
	return out
}
