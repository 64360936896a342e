package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"ventureai/internal/logging"
)

var (
	ErrAnalysisNotFound = errors.New("analysis not found")
	ErrRejectedSQL      = errors.New("sql rejected")
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// summaryColumns are returned by the list and search endpoints.
var summaryColumns = []string{
	"analysis_id", "company_name", "date", "recommendation", "round_size",
	"round_type", "generated_pdf_url", "user_id", "session_id", "created_at",
}

type QueryRunner interface {
	Run(ctx context.Context, sql string, params ...any) (*Result, error)
}

type ResultCache interface {
	Get(ctx context.Context, query string, args []any) ([]map[string]any, bool, error)
	Put(ctx context.Context, query string, args []any, rows []map[string]any) error
}

var (
	_ QueryRunner = (*Runner)(nil)
	_ ResultCache = (*Cache)(nil)
)

// Queries are the dashboard reads over the analyses table.
type Queries struct {
	runner QueryRunner
	table  Table
	cache  ResultCache
}

// NewQueries builds the dashboard queries. cache may be nil.
func NewQueries(r QueryRunner, t Table, cache ResultCache) *Queries {
	return &Queries{runner: r, table: t, cache: cache}
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

func (q *Queries) from() string {
	return quoteIdent(q.table.Database) + "." + quoteIdent(q.table.Name)
}

func clampLimit(n int) int {
	if n <= 0 {
		return defaultLimit
	}
	if n > maxLimit {
		return maxLimit
	}
	return n
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// ListAnalyses returns the newest analyses, optionally for one user.
func (q *Queries) ListAnalyses(ctx context.Context, userID string, limit int) ([]map[string]any, error) {
	var (
		where string
		args  []any
	)
	if userID != "" {
		where = " WHERE user_id = ?"
		args = append(args, userID)
	}
	sql := fmt.Sprintf("SELECT %s FROM %s%s ORDER BY created_at DESC LIMIT %d",
		strings.Join(summaryColumns, ", "), q.from(), where, clampLimit(limit))
	return q.cached(ctx, "list_analyses", sql, args)
}

// GetAnalysis returns every column of one analysis.
func (q *Queries) GetAnalysis(ctx context.Context, analysisID string) (map[string]any, error) {
	if strings.TrimSpace(analysisID) == "" {
		return nil, ErrAnalysisNotFound
	}
	sql := fmt.Sprintf("SELECT %s FROM %s WHERE analysis_id = ? LIMIT 1",
		strings.Join(columnNames, ", "), q.from())
	rows, err := q.cached(ctx, "get_analysis", sql, []any{analysisID})
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisNotFound, analysisID)
	}
	return rows[0], nil
}

// SearchCompanies matches term case-insensitively anywhere in company_name.
func (q *Queries) SearchCompanies(ctx context.Context, term string, limit int) ([]map[string]any, error) {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []map[string]any{}, nil
	}
	sql := fmt.Sprintf(`SELECT %s FROM %s WHERE lower(company_name) LIKE ? ESCAPE '\' ORDER BY created_at DESC LIMIT %d`,
		strings.Join(summaryColumns, ", "), q.from(), clampLimit(limit))
	return q.cached(ctx, "search_companies", sql, []any{"%" + escapeLike(term) + "%"})
}

// RecommendationBreakdown counts analyses per recommendation.
func (q *Queries) RecommendationBreakdown(ctx context.Context, userID string) ([]map[string]any, error) {
	var (
		where string
		args  []any
	)
	if userID != "" {
		where = " WHERE user_id = ?"
		args = append(args, userID)
	}
	sql := fmt.Sprintf("SELECT coalesce(recommendation, 'Unknown') AS recommendation, count(*) AS total FROM %s%s GROUP BY 1 ORDER BY total DESC",
		q.from(), where)
	return q.cached(ctx, "recommendation_breakdown", sql, args)
}

func (q *Queries) cached(ctx context.Context, name, sql string, args []any) ([]map[string]any, error) {
	// The rendered SQL carries LIMIT, so it is part of the key.
	key := append([]any{sql}, args...)
	if q.cache != nil {
		rows, ok, err := q.cache.Get(ctx, name, key)
		if err != nil {
			logging.Warn().Err(err).Str("query", name).Msg("cache read failed")
		} else if ok {
			return rows, nil
		}
	}

	res, err := q.runner.Run(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	logging.Debug().
		Str("query", name).
		Str("qid", res.QueryExecutionID).
		Int64("scanned_bytes", res.ScannedBytes).
		Int("rows", len(res.Rows)).
		Msg("warehouse query complete")

	// Empty lookups are not cached so a fresh analysis shows up immediately.
	if q.cache != nil && len(res.Rows) > 0 {
		if err := q.cache.Put(ctx, name, key, res.Rows); err != nil {
			logging.Warn().Err(err).Str("query", name).Msg("cache write failed")
		}
	}
	return res.Rows, nil
}

// RepairPartitions re-syncs Glue partitions with the objects in S3.
func RepairPartitions(ctx context.Context, r QueryRunner, t Table) (*Result, error) {
	if err := t.validate(); err != nil {
		return nil, err
	}
	res, err := r.Run(ctx, "MSCK REPAIR TABLE "+quoteIdentBacktick(t.Name))
	if err != nil {
		return nil, fmt.Errorf("repair partitions: %w", err)
	}
	logging.Info().Str("qid", res.QueryExecutionID).Str("table", t.Name).Msg("repair succeeded")
	return res, nil
}

// DDL statements take Hive identifiers.
func quoteIdentBacktick(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

// RunSQL runs caller-supplied SQL after ValidateSelect accepts it. Results
// are never cached.
func (q *Queries) RunSQL(ctx context.Context, sql string, opt GuardOptions) (*Result, error) {
	if err := ValidateSelect(sql, opt); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRejectedSQL, err)
	}
	res, err := q.runner.Run(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("run sql: %w", err)
	}
	return res, nil
}
