package etl

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ventureai/internal/warehouse"
)

type fakeSchema struct {
	err   error
	calls int
}

func (f *fakeSchema) Ensure(context.Context) error {
	f.calls++
	return f.err
}

type fakeRunner struct {
	sql []string
	err error
}

func (f *fakeRunner) Run(_ context.Context, sql string, _ ...any) (*warehouse.Result, error) {
	f.sql = append(f.sql, sql)
	if f.err != nil {
		return nil, f.err
	}
	return &warehouse.Result{QueryExecutionID: "q-9", Rows: []map[string]any{{"result": "Repair: added partition"}}}, nil
}

var table = warehouse.Table{Database: "venture_ai", Name: "pitch_deck_analysis", Bucket: "wh", Prefix: "analyses/"}

func TestRepairPartitions(t *testing.T) {
	s, r := &fakeSchema{}, &fakeRunner{}
	res, err := NewRepairPartitions(s, r, table).Handle(context.Background(), events.CloudWatchEvent{ID: "ev-1"})
	require.NoError(t, err)

	assert.Equal(t, RepairResult{Ok: true, QueryID: "q-9", Database: "venture_ai", Table: "pitch_deck_analysis", Rows: 1}, res)
	assert.Equal(t, 1, s.calls)
	assert.Equal(t, []string{"MSCK REPAIR TABLE `pitch_deck_analysis`"}, r.sql)
}

func TestRepairPartitionsSchemaFailure(t *testing.T) {
	r := &fakeRunner{}
	res, err := NewRepairPartitions(&fakeSchema{err: errors.New("glue down")}, r, table).Handle(context.Background(), events.CloudWatchEvent{})
	assert.ErrorContains(t, err, "glue down")
	assert.False(t, res.Ok)
	assert.Empty(t, r.sql)
}

func TestRepairPartitionsQueryFailure(t *testing.T) {
	r := &fakeRunner{err: &warehouse.QueryError{State: "FAILED", Reason: "denied"}}
	_, err := NewRepairPartitions(&fakeSchema{}, r, table).Handle(context.Background(), events.CloudWatchEvent{})
	var qe *warehouse.QueryError
	assert.ErrorAs(t, err, &qe)
}
