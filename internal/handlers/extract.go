package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"ventureai/internal/extract"
)

type TextExtractor interface {
	ExtractURL(ctx context.Context, url string) (*extract.Result, error)
}

var _ TextExtractor = (*extract.Extractor)(nil)

type ExtractRequest struct {
	PDFURL string `json:"pdf_url"`
}

type ExtractHandler struct {
	x TextExtractor
}

func NewExtractHandler(x TextExtractor) *ExtractHandler {
	return &ExtractHandler{x: x}
}

func (h *ExtractHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if method(req) != http.MethodPost {
		return methodNotAllowed(), nil
	}
	var body ExtractRequest
	if err := decodeBody(req, &body); err != nil {
		return errorResp(err), nil
	}
	url := strings.TrimSpace(body.PDFURL)
	if url == "" {
		return errorResp(missingFields("pdf_url")), nil
	}

	res, err := h.x.ExtractURL(ctx, url)
	if err != nil {
		return errorResp(err), nil
	}
	return jsonResp(http.StatusOK, res), nil
}
