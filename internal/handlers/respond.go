// Package handlers adapts the services to API Gateway HTTP API (v2) events.
package handlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"ventureai/internal/agent"
	"ventureai/internal/analysis"
	"ventureai/internal/extract"
	"ventureai/internal/fetch"
	"ventureai/internal/logging"
	"ventureai/internal/sessions"
	"ventureai/internal/warehouse"
)

var (
	errInvalidJSON = errors.New("request body is not valid JSON")
	errForbidden   = errors.New("forbidden")
)

func jsonResp(status int, v any) events.APIGatewayV2HTTPResponse {
	b, err := json.Marshal(v)
	if err != nil {
		return jsonErr(http.StatusInternalServerError, "encode_failed", err)
	}
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers: map[string]string{
			"content-type":                "application/json",
			"access-control-allow-origin": "*",
		},
		Body: string(b),
	}
}

func jsonErr(status int, code string, err error) events.APIGatewayV2HTTPResponse {
	resp := map[string]any{"error": code}
	if err != nil {
		resp["detail"] = err.Error()
	}
	b, _ := json.Marshal(resp)
	return events.APIGatewayV2HTTPResponse{
		StatusCode: status,
		Headers: map[string]string{
			"content-type":                "application/json",
			"access-control-allow-origin": "*",
		},
		Body: string(b),
	}
}

// errorResp maps service errors onto status codes.
func errorResp(err error) events.APIGatewayV2HTTPResponse {
	var (
		invalid  *agent.InvalidJSONError
		status   *fetch.StatusError
		query    *warehouse.QueryError
		textract *extract.JobError
	)
	switch {
	case errors.Is(err, errInvalidJSON):
		return jsonErr(http.StatusBadRequest, "invalid_json", err)
	case errors.Is(err, errForbidden):
		return jsonErr(http.StatusForbidden, "forbidden", err)
	case errors.Is(err, analysis.ErrInvalidRequest):
		return jsonErr(http.StatusBadRequest, "invalid_request", err)
	case errors.Is(err, sessions.ErrSessionNotFound):
		return jsonErr(http.StatusNotFound, "session_not_found", err)
	case errors.Is(err, warehouse.ErrAnalysisNotFound), errors.Is(err, analysis.ErrNoAnalysis):
		return jsonErr(http.StatusNotFound, "analysis_not_found", err)
	case errors.As(err, &invalid):
		return jsonErr(http.StatusInternalServerError, "invalid_agent_response", err)
	case errors.Is(err, warehouse.ErrMissingMemo):
		return jsonErr(http.StatusInternalServerError, "invalid_agent_response", err)
	case errors.As(err, &status):
		return jsonErr(http.StatusInternalServerError, "download_failed", err)
	case errors.As(err, &query):
		return jsonErr(http.StatusInternalServerError, "query_failed", err)
	case errors.As(err, &textract):
		return jsonErr(http.StatusInternalServerError, "extraction_failed", err)
	default:
		logging.Error().Err(err).Msg("request failed")
		return jsonErr(http.StatusInternalServerError, "internal_error", err)
	}
}

func decodeBody(req events.APIGatewayV2HTTPRequest, v any) error {
	body := req.Body
	if req.IsBase64Encoded {
		b, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return fmt.Errorf("%w: %v", errInvalidJSON, err)
		}
		body = string(b)
	}
	if strings.TrimSpace(body) == "" {
		body = "{}"
	}
	if err := json.Unmarshal([]byte(body), v); err != nil {
		return fmt.Errorf("%w: %v", errInvalidJSON, err)
	}
	return nil
}

func method(req events.APIGatewayV2HTTPRequest) string {
	return strings.ToUpper(req.RequestContext.HTTP.Method)
}

func methodNotAllowed() events.APIGatewayV2HTTPResponse {
	return jsonErr(http.StatusMethodNotAllowed, "method_not_allowed", nil)
}

func missingFields(fields ...string) error {
	return fmt.Errorf("%w: missing %s", analysis.ErrInvalidRequest, strings.Join(fields, ", "))
}
