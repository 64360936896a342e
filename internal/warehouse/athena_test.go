package warehouse

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAthena struct {
	started []*athena.StartQueryExecutionInput
	states  []athenatypes.QueryExecutionState
	reason  string
	polls   int
	pages   []*athena.GetQueryResultsOutput
	tokens  []*string
	failGet error
}

func (f *fakeAthena) StartQueryExecution(_ context.Context, in *athena.StartQueryExecutionInput, _ ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error) {
	f.started = append(f.started, in)
	return &athena.StartQueryExecutionOutput{QueryExecutionId: aws.String("qid-1")}, nil
}

func (f *fakeAthena) GetQueryExecution(_ context.Context, _ *athena.GetQueryExecutionInput, _ ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error) {
	if f.failGet != nil {
		return nil, f.failGet
	}
	st := f.states[len(f.states)-1]
	if f.polls < len(f.states) {
		st = f.states[f.polls]
	}
	f.polls++
	return &athena.GetQueryExecutionOutput{QueryExecution: &athenatypes.QueryExecution{
		Status: &athenatypes.QueryExecutionStatus{State: st, StateChangeReason: aws.String(f.reason)},
		Statistics: &athenatypes.QueryExecutionStatistics{
			DataScannedInBytes:          aws.Int64(2048),
			EngineExecutionTimeInMillis: aws.Int64(15),
		},
	}}, nil
}

func (f *fakeAthena) GetQueryResults(_ context.Context, in *athena.GetQueryResultsInput, _ ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error) {
	f.tokens = append(f.tokens, in.NextToken)
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func cell(v string) athenatypes.Datum { return athenatypes.Datum{VarCharValue: aws.String(v)} }

func resultPage(cols map[string]string, order []string, rows [][]athenatypes.Datum, next string) *athena.GetQueryResultsOutput {
	info := make([]athenatypes.ColumnInfo, 0, len(order))
	for _, c := range order {
		info = append(info, athenatypes.ColumnInfo{Name: aws.String(c), Type: aws.String(cols[c])})
	}
	out := &athena.GetQueryResultsOutput{ResultSet: &athenatypes.ResultSet{
		ResultSetMetadata: &athenatypes.ResultSetMetadata{ColumnInfo: info},
	}}
	for _, r := range rows {
		out.ResultSet.Rows = append(out.ResultSet.Rows, athenatypes.Row{Data: r})
	}
	if next != "" {
		out.NextToken = aws.String(next)
	}
	return out
}

func testRunner(c AthenaClient) *Runner {
	return NewRunner(c, RunOptions{
		Database:       "venture_ai",
		Workgroup:      "primary",
		OutputLocation: "s3://results/",
		PollInterval:   time.Millisecond,
		MaxWait:        200 * time.Millisecond,
	})
}

func TestLiteral(t *testing.T) {
	assert.Equal(t, "'it''s'", Literal("it's"))
	assert.Equal(t, "NULL", Literal(nil))
	assert.Equal(t, "42", Literal(42))
	assert.Equal(t, "TRUE", Literal(true))
	assert.Equal(t, "1.5", Literal(1.5))
}

func TestRunPagesAndCoerces(t *testing.T) {
	types := map[string]string{"recommendation": "varchar", "total": "bigint", "ratio": "double"}
	order := []string{"recommendation", "total", "ratio"}
	f := &fakeAthena{
		states: []athenatypes.QueryExecutionState{
			athenatypes.QueryExecutionStateQueued,
			athenatypes.QueryExecutionStateRunning,
			athenatypes.QueryExecutionStateSucceeded,
		},
		pages: []*athena.GetQueryResultsOutput{
			resultPage(types, order, [][]athenatypes.Datum{
				{cell("recommendation"), cell("total"), cell("ratio")},
				{cell("Invest"), cell("3"), cell("0.75")},
			}, "tok"),
			resultPage(types, order, [][]athenatypes.Datum{
				{{}, cell("1"), cell("n/a")},
			}, ""),
		},
	}

	res, err := testRunner(f).Run(context.Background(), "SELECT 1 WHERE a = ? AND b = ?", "o'neil", 7)
	require.NoError(t, err)

	require.Len(t, f.started, 1)
	assert.Equal(t, []string{"'o''neil'", "7"}, f.started[0].ExecutionParameters)
	assert.Equal(t, "venture_ai", aws.ToString(f.started[0].QueryExecutionContext.Database))
	assert.Equal(t, 3, f.polls)
	assert.Nil(t, f.tokens[0])
	assert.Equal(t, "tok", aws.ToString(f.tokens[1]))

	assert.Equal(t, order, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, map[string]any{"recommendation": "Invest", "total": int64(3), "ratio": 0.75}, res.Rows[0])
	assert.Equal(t, map[string]any{"recommendation": nil, "total": int64(1), "ratio": "n/a"}, res.Rows[1])
	assert.Equal(t, int64(2048), res.ScannedBytes)
	assert.Equal(t, "qid-1", res.QueryExecutionID)
}

func TestRunFailedQuery(t *testing.T) {
	f := &fakeAthena{
		states: []athenatypes.QueryExecutionState{athenatypes.QueryExecutionStateFailed},
		reason: "SYNTAX_ERROR: line 1:8",
	}
	_, err := testRunner(f).Run(context.Background(), "SELEC 1")

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "FAILED", qe.State)
	assert.Equal(t, "SYNTAX_ERROR: line 1:8", qe.Reason)
	assert.Equal(t, 1, f.polls, "terminal state stops polling")
}

func TestRunTimeout(t *testing.T) {
	f := &fakeAthena{states: []athenatypes.QueryExecutionState{athenatypes.QueryExecutionStateRunning}}
	_, err := testRunner(f).Run(context.Background(), "SELECT 1")

	var qe *QueryError
	require.ErrorAs(t, err, &qe)
	assert.Equal(t, "TIMEOUT", qe.State)
}

func TestRunStatusError(t *testing.T) {
	boom := errors.New("throttled")
	f := &fakeAthena{failGet: boom}
	_, err := testRunner(f).Run(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, boom)
}

func TestRunRequiresOptions(t *testing.T) {
	_, err := NewRunner(&fakeAthena{}, RunOptions{Database: "db"}).Run(context.Background(), "SELECT 1")
	assert.ErrorContains(t, err, "workgroup")
}

func TestRunDDLHasNoHeaderRow(t *testing.T) {
	f := &fakeAthena{
		states: []athenatypes.QueryExecutionState{athenatypes.QueryExecutionStateSucceeded},
		pages: []*athena.GetQueryResultsOutput{
			resultPage(map[string]string{"result": "string"}, []string{"result"}, [][]athenatypes.Datum{
				{cell("Partitions not in metastore:")},
			}, ""),
		},
	}
	res, err := testRunner(f).Run(context.Background(), "MSCK REPAIR TABLE t")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "Partitions not in metastore:", res.Rows[0]["result"])
}
