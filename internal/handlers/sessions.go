package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"ventureai/internal/sessions"
)

type SessionFinder interface {
	FindOrCreate(ctx context.Context, userID string, initialState map[string]any) (*sessions.Session, bool, error)
}

var _ SessionFinder = (*sessions.Broker)(nil)

type CreateSessionRequest struct {
	UserID string         `json:"user_id"`
	State  map[string]any `json:"state,omitempty"`
}

type CreateSessionResponse struct {
	SessionID string         `json:"session_id"`
	State     map[string]any `json:"state"`
	Created   bool           `json:"created"`
}

// SessionHandler finds or creates the caller's agent session.
type SessionHandler struct {
	broker SessionFinder
}

func NewSessionHandler(b SessionFinder) *SessionHandler {
	return &SessionHandler{broker: b}
}

func (h *SessionHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if method(req) != http.MethodPost {
		return methodNotAllowed(), nil
	}
	var body CreateSessionRequest
	if err := decodeBody(req, &body); err != nil {
		return errorResp(err), nil
	}
	user, err := userID(req, body.UserID)
	if err != nil {
		return errorResp(err), nil
	}
	if user == "" {
		return errorResp(missingFields("user_id")), nil
	}

	s, created, err := h.broker.FindOrCreate(ctx, user, body.State)
	if err != nil {
		return errorResp(err), nil
	}
	state := s.State
	if state == nil {
		state = map[string]any{}
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	return jsonResp(status, CreateSessionResponse{SessionID: s.ID, State: state, Created: created}), nil
}

// userID returns the JWT subject when the route sits behind an authorizer.
// A requested id that names another user is forbidden. Without claims the
// requested id is used as is.
func userID(req events.APIGatewayV2HTTPRequest, requested string) (string, error) {
	requested = strings.TrimSpace(requested)
	sub := jwtSubject(req)
	if sub == "" {
		return requested, nil
	}
	if requested != "" && requested != sub {
		return "", fmt.Errorf("%w: user_id does not match the authenticated user", errForbidden)
	}
	return sub, nil
}

func jwtSubject(req events.APIGatewayV2HTTPRequest) string {
	if req.RequestContext.Authorizer == nil || req.RequestContext.Authorizer.JWT == nil {
		return ""
	}
	return strings.TrimSpace(req.RequestContext.Authorizer.JWT.Claims["sub"])
}
