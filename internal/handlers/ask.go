package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"ventureai/internal/analysis"
)

type Asker interface {
	Ask(ctx context.Context, req analysis.AskRequest) (*analysis.Answer, error)
}

// AskHandler answers investor questions about a session's analysis.
type AskHandler struct {
	svc Asker
}

func NewAskHandler(svc Asker) *AskHandler {
	return &AskHandler{svc: svc}
}

func (h *AskHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if method(req) != http.MethodPost {
		return methodNotAllowed(), nil
	}
	var body analysis.AskRequest
	if err := decodeBody(req, &body); err != nil {
		return errorResp(err), nil
	}
	user, err := userID(req, body.UserID)
	if err != nil {
		return errorResp(err), nil
	}
	body.UserID = user
	body.Question = strings.TrimSpace(body.Question)

	ans, err := h.svc.Ask(ctx, body)
	if err != nil {
		return errorResp(err), nil
	}
	return jsonResp(http.StatusOK, ans), nil
}
