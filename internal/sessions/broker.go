package sessions

import (
	"context"
	"fmt"
	"strings"

	"ventureai/internal/logging"
)

// Directory is the slice of the agent app the broker needs.
type Directory interface {
	ListSessions(ctx context.Context, userID string) ([]Session, error)
	CreateSession(ctx context.Context, userID string, state map[string]any) (*Session, error)
}

// Broker hands each user one long-lived session.
type Broker struct {
	dir Directory
}

func NewBroker(dir Directory) *Broker {
	return &Broker{dir: dir}
}

// FindOrCreate reuses the user's newest session, or creates one seeded with
// initialState. created reports which path was taken.
func (b *Broker) FindOrCreate(ctx context.Context, userID string, initialState map[string]any) (*Session, bool, error) {
	log := logging.Logger.With().Str("user_id", userID).Logger()

	existing, err := b.dir.ListSessions(ctx, userID)
	if err != nil {
		return nil, false, fmt.Errorf("list sessions: %w", err)
	}

	if len(existing) > 0 {
		s := existing[0]
		if strings.TrimSpace(s.ID) == "" {
			return nil, false, fmt.Errorf("failed to get or create a session id")
		}
		if s.State == nil {
			s.State = map[string]any{}
		}
		log.Info().Str("session_id", s.ID).Msg("found existing session")
		return &s, false, nil
	}

	log.Info().Msg("no existing sessions, creating one")
	s, err := b.dir.CreateSession(ctx, userID, initialState)
	if err != nil {
		return nil, false, fmt.Errorf("create session: %w", err)
	}
	if s == nil || strings.TrimSpace(s.ID) == "" {
		return nil, false, fmt.Errorf("failed to get or create a session id")
	}
	log.Info().Str("session_id", s.ID).Msg("created session")
	return s, true, nil
}
