package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"ventureai/internal/handlers"
)

func echo(got *events.APIGatewayV2HTTPRequest) lambdaFunc {
	return func(_ context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
		*got = req
		return events.APIGatewayV2HTTPResponse{
			StatusCode: http.StatusAccepted,
			Headers:    map[string]string{"content-type": "application/json"},
			Body:       `{"ok":true}`,
		}, nil
	}
}

func TestRouterAdaptsRequests(t *testing.T) {
	var got events.APIGatewayV2HTTPRequest
	srv := httptest.NewServer(newRouter(routes{Analyses: echo(&got), Dashboard: echo(&got)}))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/analyses", "application/json", strings.NewReader(`{"user_id":"u1"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, string(body))
	assert.Equal(t, "POST", got.RequestContext.HTTP.Method)
	assert.Equal(t, "/analyses", got.RawPath)
	assert.Equal(t, `{"user_id":"u1"}`, got.Body)
	assert.Equal(t, "application/json", got.Headers["content-type"])
	assert.Equal(t, "POST /analyses", got.RouteKey)

	resp2, err := http.Get(srv.URL + "/analyses/abc-1?limit=3")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, "abc-1", got.PathParameters["id"])
	assert.Equal(t, "3", got.QueryStringParameters["limit"])
	assert.Equal(t, "GET", got.RequestContext.HTTP.Method)

	resp3, err := http.Get(srv.URL + "/analyses/search?q=sia")
	require.NoError(t, err)
	resp3.Body.Close()
	assert.Empty(t, got.PathParameters["id"])
	assert.Equal(t, "/analyses/search", got.RawPath)
}

func TestRouterHealthAndUnavailable(t *testing.T) {
	srv := httptest.NewServer(newRouter(routes{
		Health:      handlers.Health("ventureai-devserver"),
		unavailable: map[string]error{"sessions": errors.New("missing env SESSIONS_TABLE")},
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, gjson.GetBytes(body, "ok").Bool())

	resp, err = http.Post(srv.URL+"/sessions", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Equal(t, "sessions_unavailable", gjson.GetBytes(body, "error").String())
	assert.Equal(t, "missing env SESSIONS_TABLE", gjson.GetBytes(body, "detail").String())
}

func TestRouterCORSPreflight(t *testing.T) {
	srv := httptest.NewServer(newRouter(routes{}))
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL+"/analyses", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
