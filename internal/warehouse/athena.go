package warehouse

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/athena"
	athenatypes "github.com/aws/aws-sdk-go-v2/service/athena/types"
	"github.com/cenkalti/backoff/v4"
)

type AthenaClient interface {
	StartQueryExecution(ctx context.Context, params *athena.StartQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.StartQueryExecutionOutput, error)
	GetQueryExecution(ctx context.Context, params *athena.GetQueryExecutionInput, optFns ...func(*athena.Options)) (*athena.GetQueryExecutionOutput, error)
	GetQueryResults(ctx context.Context, params *athena.GetQueryResultsInput, optFns ...func(*athena.Options)) (*athena.GetQueryResultsOutput, error)
}

var _ AthenaClient = (*athena.Client)(nil)

type RunOptions struct {
	Database       string
	Workgroup      string
	OutputLocation string // s3://.../athena-results/
	MaxWait        time.Duration
	PollInterval   time.Duration
	MaxResultRows  int
}

type Result struct {
	QueryExecutionID string           `json:"query_execution_id"`
	Columns          []string         `json:"columns"`
	Rows             []map[string]any `json:"rows"`
	ScannedBytes     int64            `json:"scanned_bytes"`
	ExecutionMs      int64            `json:"execution_ms"`
}

// QueryError is a query that reached FAILED or CANCELLED, or never finished.
type QueryError struct {
	State            string
	Reason           string
	QueryExecutionID string
}

func (e *QueryError) Error() string {
	if e.QueryExecutionID != "" {
		return fmt.Sprintf("athena %s: %s (qid=%s)", e.State, e.Reason, e.QueryExecutionID)
	}
	return fmt.Sprintf("athena %s: %s", e.State, e.Reason)
}

var errPending = errors.New("query still running")

// Runner executes parameterized Athena queries.
type Runner struct {
	client AthenaClient
	opt    RunOptions
}

func NewRunner(c AthenaClient, opt RunOptions) *Runner {
	if opt.MaxWait == 0 {
		opt.MaxWait = 25 * time.Second
	}
	if opt.PollInterval == 0 {
		opt.PollInterval = 700 * time.Millisecond
	}
	if opt.MaxResultRows == 0 {
		opt.MaxResultRows = 1000
	}
	return &Runner{client: c, opt: opt}
}

// Literal renders a value as an Athena execution parameter. Strings are
// single-quoted with embedded quotes doubled; nil becomes NULL.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return "'" + strings.ReplaceAll(x, "'", "''") + "'"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return Literal(fmt.Sprint(x))
	}
}

// Run starts sql with params bound to its ? placeholders and waits for the rows.
func (r *Runner) Run(ctx context.Context, sql string, params ...any) (*Result, error) {
	opt := r.opt
	if strings.TrimSpace(opt.Database) == "" {
		return nil, fmt.Errorf("missing athena database")
	}
	if strings.TrimSpace(opt.Workgroup) == "" {
		return nil, fmt.Errorf("missing athena workgroup")
	}
	if strings.TrimSpace(opt.OutputLocation) == "" {
		return nil, fmt.Errorf("missing athena output location")
	}

	in := &athena.StartQueryExecutionInput{
		QueryString: aws.String(sql),
		QueryExecutionContext: &athenatypes.QueryExecutionContext{
			Database: aws.String(opt.Database),
		},
		ResultConfiguration: &athenatypes.ResultConfiguration{
			OutputLocation: aws.String(opt.OutputLocation),
		},
		WorkGroup: aws.String(opt.Workgroup),
	}
	for _, p := range params {
		in.ExecutionParameters = append(in.ExecutionParameters, Literal(p))
	}

	startOut, err := r.client.StartQueryExecution(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("athena StartQueryExecution: %w", err)
	}
	qid := aws.ToString(startOut.QueryExecutionId)

	exec, err := r.wait(ctx, qid)
	if err != nil {
		return nil, err
	}
	return r.results(ctx, qid, exec)
}

func (r *Runner) wait(ctx context.Context, qid string) (*athenatypes.QueryExecution, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.opt.PollInterval
	b.MaxInterval = 4 * r.opt.PollInterval
	b.MaxElapsedTime = r.opt.MaxWait

	var exec *athenatypes.QueryExecution
	op := func() error {
		out, err := r.client.GetQueryExecution(ctx, &athena.GetQueryExecutionInput{
			QueryExecutionId: aws.String(qid),
		})
		if err != nil {
			return backoff.Permanent(fmt.Errorf("athena GetQueryExecution: %w", err))
		}
		exec = out.QueryExecution
		switch state := exec.Status.State; state {
		case athenatypes.QueryExecutionStateSucceeded:
			return nil
		case athenatypes.QueryExecutionStateFailed, athenatypes.QueryExecutionStateCancelled:
			reason := aws.ToString(exec.Status.StateChangeReason)
			return backoff.Permanent(&QueryError{State: string(state), Reason: reason, QueryExecutionID: qid})
		default:
			return errPending
		}
	}

	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		if errors.Is(err, errPending) {
			return nil, &QueryError{State: "TIMEOUT", Reason: "query timed out", QueryExecutionID: qid}
		}
		return nil, err
	}
	return exec, nil
}

func (r *Runner) results(ctx context.Context, qid string, exec *athenatypes.QueryExecution) (*Result, error) {
	var (
		nextToken *string
		allRows   []athenatypes.Row
		colInfo   []athenatypes.ColumnInfo
	)
	for {
		out, err := r.client.GetQueryResults(ctx, &athena.GetQueryResultsInput{
			QueryExecutionId: aws.String(qid),
			NextToken:        nextToken,
			MaxResults:       aws.Int32(1000),
		})
		if err != nil {
			return nil, fmt.Errorf("athena GetQueryResults: %w", err)
		}
		if out.ResultSet != nil {
			if colInfo == nil && out.ResultSet.ResultSetMetadata != nil {
				colInfo = out.ResultSet.ResultSetMetadata.ColumnInfo
			}
			allRows = append(allRows, out.ResultSet.Rows...)
		}
		if aws.ToString(out.NextToken) == "" || len(allRows) > r.opt.MaxResultRows {
			break
		}
		nextToken = out.NextToken
	}

	cols := make([]string, 0, len(colInfo))
	for _, c := range colInfo {
		cols = append(cols, aws.ToString(c.Name))
	}

	// SELECT results repeat the column names as the first row; DDL output does not.
	if len(allRows) > 0 && isHeader(allRows[0], cols) {
		allRows = allRows[1:]
	}

	rows := make([]map[string]any, 0, len(allRows))
	for _, row := range allRows {
		if len(rows) >= r.opt.MaxResultRows {
			break
		}
		m := make(map[string]any, len(cols))
		for ci, d := range row.Data {
			if ci >= len(cols) {
				continue
			}
			m[cols[ci]] = coerce(d.VarCharValue, aws.ToString(colInfo[ci].Type))
		}
		rows = append(rows, m)
	}

	res := &Result{QueryExecutionID: qid, Columns: cols, Rows: rows}
	if exec != nil && exec.Statistics != nil {
		res.ScannedBytes = aws.ToInt64(exec.Statistics.DataScannedInBytes)
		res.ExecutionMs = aws.ToInt64(exec.Statistics.EngineExecutionTimeInMillis)
	}
	return res, nil
}

func isHeader(row athenatypes.Row, cols []string) bool {
	if len(cols) == 0 || len(row.Data) != len(cols) {
		return false
	}
	for i, d := range row.Data {
		if aws.ToString(d.VarCharValue) != cols[i] {
			return false
		}
	}
	return true
}

// coerce converts a result cell by its declared Athena type. Unparseable
// numeric cells are kept as text.
func coerce(v *string, typ string) any {
	if v == nil {
		return nil
	}
	s := *v
	switch strings.ToLower(typ) {
	case "tinyint", "smallint", "integer", "int", "bigint":
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
	case "double", "float", "real", "decimal":
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return f
		}
	case "boolean":
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
	}
	return s
}
