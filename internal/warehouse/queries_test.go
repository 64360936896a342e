package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedQuery struct {
	sql    string
	params []any
}

type fakeRunner struct {
	queries []recordedQuery
	rows    []map[string]any
	err     error
}

func (f *fakeRunner) Run(_ context.Context, sql string, params ...any) (*Result, error) {
	f.queries = append(f.queries, recordedQuery{sql: sql, params: params})
	if f.err != nil {
		return nil, f.err
	}
	return &Result{QueryExecutionID: "q", Rows: f.rows}, nil
}

func TestListAnalyses(t *testing.T) {
	r := &fakeRunner{rows: []map[string]any{{"analysis_id": "a"}}}
	q := NewQueries(r, testTable, nil)

	rows, err := q.ListAnalyses(context.Background(), "u1", 0)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.Len(t, r.queries, 1)
	assert.Contains(t, r.queries[0].sql, `FROM "venture_ai"."pitch_deck_analysis" WHERE user_id = ? ORDER BY created_at DESC LIMIT 50`)
	assert.Equal(t, []any{"u1"}, r.queries[0].params)

	_, err = q.ListAnalyses(context.Background(), "", 10000)
	require.NoError(t, err)
	assert.NotContains(t, r.queries[1].sql, "WHERE")
	assert.Contains(t, r.queries[1].sql, "LIMIT 500")
	assert.Empty(t, r.queries[1].params)
}

func TestGetAnalysis(t *testing.T) {
	r := &fakeRunner{rows: []map[string]any{{"analysis_id": "a", "company_name": "Acme"}}}
	q := NewQueries(r, testTable, nil)

	row, err := q.GetAnalysis(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "Acme", row["company_name"])
	assert.Contains(t, r.queries[0].sql, "WHERE analysis_id = ? LIMIT 1")
	assert.Contains(t, r.queries[0].sql, "SELECT analysis_id, generated_pdf_url, company_name,")

	r.rows = nil
	_, err = q.GetAnalysis(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrAnalysisNotFound)

	_, err = q.GetAnalysis(context.Background(), " ")
	assert.ErrorIs(t, err, ErrAnalysisNotFound)
}

func TestSearchCompaniesEscapesPattern(t *testing.T) {
	r := &fakeRunner{}
	q := NewQueries(r, testTable, nil)

	_, err := q.SearchCompanies(context.Background(), " 100%_AI ", 5)
	require.NoError(t, err)
	assert.Equal(t, []any{`%100\%\_ai%`}, r.queries[0].params)
	assert.Contains(t, r.queries[0].sql, `lower(company_name) LIKE ? ESCAPE '\'`)
	assert.Contains(t, r.queries[0].sql, "LIMIT 5")

	rows, err := q.SearchCompanies(context.Background(), "   ", 5)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Len(t, r.queries, 1, "blank term does not hit Athena")
}

func TestRecommendationBreakdown(t *testing.T) {
	r := &fakeRunner{rows: []map[string]any{{"recommendation": "Invest", "total": int64(2)}}}
	q := NewQueries(r, testTable, nil)

	rows, err := q.RecommendationBreakdown(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rows[0]["total"])
	assert.Contains(t, r.queries[0].sql, "coalesce(recommendation, 'Unknown')")
	assert.Contains(t, r.queries[0].sql, "GROUP BY 1")
}

func TestQueryErrorWrapped(t *testing.T) {
	qe := &QueryError{State: "FAILED", Reason: "bad"}
	q := NewQueries(&fakeRunner{err: qe}, testTable, nil)
	_, err := q.ListAnalyses(context.Background(), "", 1)

	var got *QueryError
	assert.ErrorAs(t, err, &got)
}

func TestRepairPartitions(t *testing.T) {
	r := &fakeRunner{}
	_, err := RepairPartitions(context.Background(), r, testTable)
	require.NoError(t, err)
	assert.Equal(t, "MSCK REPAIR TABLE `pitch_deck_analysis`", r.queries[0].sql)
}

type memDynamo struct {
	items map[string]map[string]ddbtypes.AttributeValue
	gets  int
	puts  int
	err   error
}

func ddbKey(k map[string]ddbtypes.AttributeValue) string {
	return k["PK"].(*ddbtypes.AttributeValueMemberS).Value + "|" + k["SK"].(*ddbtypes.AttributeValueMemberS).Value
}

func (m *memDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	m.gets++
	if m.err != nil {
		return nil, m.err
	}
	return &dynamodb.GetItemOutput{Item: m.items[ddbKey(in.Key)]}, nil
}

func (m *memDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.puts++
	if m.err != nil {
		return nil, m.err
	}
	if m.items == nil {
		m.items = map[string]map[string]ddbtypes.AttributeValue{}
	}
	m.items[ddbKey(in.Item)] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func TestCachedQueries(t *testing.T) {
	ddb := &memDynamo{}
	cache := NewCache(ddb, "cache", time.Minute)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	r := &fakeRunner{rows: []map[string]any{{"analysis_id": "a"}}}
	q := NewQueries(r, testTable, cache)

	first, err := q.ListAnalyses(context.Background(), "u1", 10)
	require.NoError(t, err)
	second, err := q.ListAnalyses(context.Background(), "u1", 10)
	require.NoError(t, err)

	assert.Len(t, r.queries, 1, "second call served from cache")
	assert.Equal(t, first, second)

	_, err = q.ListAnalyses(context.Background(), "u2", 10)
	require.NoError(t, err)
	assert.Len(t, r.queries, 2, "different args miss")

	now = now.Add(2 * time.Minute)
	_, err = q.ListAnalyses(context.Background(), "u1", 10)
	require.NoError(t, err)
	assert.Len(t, r.queries, 3, "expired entry ignored")
}

func TestCacheFailureFallsThrough(t *testing.T) {
	ddb := &memDynamo{err: errors.New("ddb down")}
	r := &fakeRunner{rows: []map[string]any{{"analysis_id": "a"}}}
	q := NewQueries(r, testTable, NewCache(ddb, "cache", 0))

	rows, err := q.ListAnalyses(context.Background(), "", 10)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, ddb.gets)
	assert.Equal(t, 1, ddb.puts)
}

func TestEmptyResultsNotCached(t *testing.T) {
	ddb := &memDynamo{}
	q := NewQueries(&fakeRunner{}, testTable, NewCache(ddb, "cache", time.Minute))
	_, err := q.GetAnalysis(context.Background(), "new")
	assert.ErrorIs(t, err, ErrAnalysisNotFound)
	assert.Zero(t, ddb.puts)
}

func TestCacheKeyIncludesLimit(t *testing.T) {
	ddb := &memDynamo{}
	r := &fakeRunner{rows: []map[string]any{{"analysis_id": "a"}}}
	q := NewQueries(r, testTable, NewCache(ddb, "cache", time.Minute))

	rows, err := q.ListAnalyses(context.Background(), "u1", 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	r.rows = []map[string]any{{"analysis_id": "a"}, {"analysis_id": "b"}, {"analysis_id": "c"}}
	rows, err = q.ListAnalyses(context.Background(), "u1", 100)
	require.NoError(t, err)
	assert.Len(t, r.queries, 2)
	assert.Len(t, rows, 3)

	_, err = q.SearchCompanies(context.Background(), "acme", 1)
	require.NoError(t, err)
	_, err = q.SearchCompanies(context.Background(), "acme", 5)
	require.NoError(t, err)
	assert.Len(t, r.queries, 4)
}
