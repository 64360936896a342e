package handlers

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/aws/aws-lambda-go/events"

	"ventureai/internal/warehouse"
)

type DashboardQueries interface {
	ListAnalyses(ctx context.Context, userID string, limit int) ([]map[string]any, error)
	GetAnalysis(ctx context.Context, analysisID string) (map[string]any, error)
	SearchCompanies(ctx context.Context, term string, limit int) ([]map[string]any, error)
	RecommendationBreakdown(ctx context.Context, userID string) ([]map[string]any, error)
}

var _ DashboardQueries = (*warehouse.Queries)(nil)

// DashboardHandler serves the read-only warehouse routes:
//
//	GET /analyses?user_id=&limit=
//	GET /analyses/search?q=&limit=
//	GET /analyses/{id}
//	GET /dashboard/recommendations?user_id=
type DashboardHandler struct {
	q DashboardQueries
}

func NewDashboardHandler(q DashboardQueries) *DashboardHandler {
	return &DashboardHandler{q: q}
}

func (h *DashboardHandler) Handle(ctx context.Context, req events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	if method(req) != http.MethodGet {
		return methodNotAllowed(), nil
	}
	path := routePath(req)
	qs := req.QueryStringParameters

	var (
		out any
		err error
	)
	switch path {
	case "/analyses", "/dashboard/recommendations":
		user, uerr := userID(req, qs["user_id"])
		if uerr != nil {
			return errorResp(uerr), nil
		}
		if path == "/analyses" {
			out, err = h.q.ListAnalyses(ctx, user, intParam(qs, "limit"))
		} else {
			out, err = h.q.RecommendationBreakdown(ctx, user)
		}
	case "/analyses/search":
		out, err = h.q.SearchCompanies(ctx, qs["q"], intParam(qs, "limit"))
	case "/analyses/{id}":
		id := req.PathParameters["id"]
		if id == "" {
			id, _ = url.PathUnescape(strings.TrimPrefix(stagelessPath(req), "/analyses/"))
		}
		out, err = h.q.GetAnalysis(ctx, id)
	default:
		return jsonErr(http.StatusNotFound, "not_found", nil), nil
	}
	if err != nil {
		return errorResp(err), nil
	}
	if rows, ok := out.([]map[string]any); ok && rows == nil {
		out = []map[string]any{}
	}
	return jsonResp(http.StatusOK, out), nil
}

// routePath is the route template the request matched. Explicit route keys
// are used as is; catch-all routes fall back to the path without the stage.
func routePath(req events.APIGatewayV2HTTPRequest) string {
	if _, p, ok := strings.Cut(req.RouteKey, " "); ok && !strings.Contains(p, "{proxy") {
		return strings.TrimSuffix(p, "/")
	}
	p := stagelessPath(req)
	if rest, ok := strings.CutPrefix(p, "/analyses/"); ok && rest != "search" && rest != "" {
		return "/analyses/{id}"
	}
	return p
}

// stagelessPath is RawPath without a named stage prefix such as /prod.
func stagelessPath(req events.APIGatewayV2HTTPRequest) string {
	p := strings.TrimSuffix(req.RawPath, "/")
	if st := req.RequestContext.Stage; st != "" && st != "$default" {
		if rest, ok := strings.CutPrefix(p, "/"+st); ok && (rest == "" || strings.HasPrefix(rest, "/")) {
			p = rest
		}
	}
	return p
}

func intParam(qs map[string]string, key string) int {
	n, err := strconv.Atoi(strings.TrimSpace(qs[key]))
	if err != nil {
		return 0
	}
	return n
}
