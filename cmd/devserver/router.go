package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/aws/aws-lambda-go/events"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type lambdaFunc func(context.Context, events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error)

// routes are the Lambda handlers mounted by the dev server. A nil route
// answers 503 with the reason it could not be built.
type routes struct {
	Health        lambdaFunc
	CreateSession lambdaFunc
	Analyses      lambdaFunc
	Dashboard     lambdaFunc
	Ask           lambdaFunc
	Extract       lambdaFunc

	unavailable map[string]error
}

func newRouter(rt routes) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	mount := func(name string, fn lambdaFunc) http.Handler {
		if fn == nil {
			return unavailable(name, rt.unavailable[name])
		}
		return adapt(fn)
	}

	r.Method(http.MethodGet, "/health", mount("health", rt.Health))
	r.Method(http.MethodPost, "/sessions", mount("sessions", rt.CreateSession))
	r.Method(http.MethodPost, "/analyses", mount("analyses", rt.Analyses))
	r.Method(http.MethodPost, "/ask", mount("ask", rt.Ask))
	r.Method(http.MethodPost, "/extract-text", mount("extract", rt.Extract))

	dashboard := mount("dashboard", rt.Dashboard)
	r.Method(http.MethodGet, "/analyses", dashboard)
	r.Method(http.MethodGet, "/analyses/search", dashboard)
	r.Method(http.MethodGet, "/analyses/{id}", dashboard)
	r.Method(http.MethodGet, "/dashboard/recommendations", dashboard)
	return r
}

// adapt turns an HTTP request into the API Gateway v2 event the Lambda sees.
func adapt(fn lambdaFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		req := events.APIGatewayV2HTTPRequest{
			Version:               "2.0",
			RouteKey:              r.Method + " " + chi.RouteContext(r.Context()).RoutePattern(),
			RawPath:               r.URL.Path,
			RawQueryString:        r.URL.RawQuery,
			Headers:               map[string]string{},
			QueryStringParameters: map[string]string{},
			PathParameters:        map[string]string{},
		}
		for k, v := range r.Header {
			req.Headers[strings.ToLower(k)] = strings.Join(v, ",")
		}
		for k, v := range r.URL.Query() {
			req.QueryStringParameters[k] = strings.Join(v, ",")
		}
		if id := chi.URLParam(r, "id"); id != "" {
			req.PathParameters["id"] = id
		}
		if utf8.Valid(body) {
			req.Body = string(body)
		} else {
			req.Body = base64.StdEncoding.EncodeToString(body)
			req.IsBase64Encoded = true
		}
		req.RequestContext.HTTP.Method = r.Method
		req.RequestContext.HTTP.Path = r.URL.Path
		req.RequestContext.HTTP.SourceIP = r.RemoteAddr
		req.RequestContext.RequestID = middleware.GetReqID(r.Context())
		req.RequestContext.TimeEpoch = time.Now().UnixMilli()

		resp, err := fn(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		status := resp.StatusCode
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)

		out := []byte(resp.Body)
		if resp.IsBase64Encoded {
			if out, err = base64.StdEncoding.DecodeString(resp.Body); err != nil {
				return
			}
		}
		_, _ = w.Write(out)
	})
}

func unavailable(name string, reason error) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		detail := "not configured"
		if reason != nil {
			detail = reason.Error()
		}
		w.Header().Set("content-type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": name + "_unavailable", "detail": detail})
	})
}
