package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"ventureai/internal/analysis"
)

type Generator interface {
	Generate(ctx context.Context, req analysis.Request) (*analysis.Result, error)
}

var (
	_ Generator = (*analysis.Service)(nil)
	_ Asker     = (*analysis.Service)(nil)
)

// AnalysisHandler runs the full deck analysis pipeline synchronously.
type AnalysisHandler struct {
	svc Generator
}

func NewAnalysisHandler(svc Generator) *AnalysisHandler {
	return &AnalysisHandler{svc: svc}
}

func (h *AnalysisHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if method(req) != http.MethodPost {
		return methodNotAllowed(), nil
	}
	var body analysis.Request
	if err := decodeBody(req, &body); err != nil {
		return errorResp(err), nil
	}
	user, err := userID(req, body.UserID)
	if err != nil {
		return errorResp(err), nil
	}
	body.UserID = user
	body.SessionID = strings.TrimSpace(body.SessionID)
	body.PDFURL = strings.TrimSpace(body.PDFURL)

	res, err := h.svc.Generate(ctx, body)
	if err != nil {
		return errorResp(err), nil
	}
	return jsonResp(http.StatusOK, res), nil
}
