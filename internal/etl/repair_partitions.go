// Package etl holds scheduled maintenance jobs for the analyses warehouse.
package etl

import (
	"context"

	"github.com/aws/aws-lambda-go/events"

	"ventureai/internal/logging"
	"ventureai/internal/warehouse"
)

type RepairResult struct {
	Ok       bool   `json:"ok"`
	QueryID  string `json:"query_id,omitempty"`
	Database string `json:"database,omitempty"`
	Table    string `json:"table,omitempty"`
	Rows     int    `json:"rows"`
}

type SchemaEnsurer interface {
	Ensure(ctx context.Context) error
}

// RepairPartitions makes sure the table exists, then runs MSCK REPAIR so any
// partition written without a Glue registration becomes queryable.
type RepairPartitions struct {
	schema SchemaEnsurer
	runner warehouse.QueryRunner
	table  warehouse.Table
}

func NewRepairPartitions(schema SchemaEnsurer, runner warehouse.QueryRunner, table warehouse.Table) *RepairPartitions {
	return &RepairPartitions{schema: schema, runner: runner, table: table}
}

// Handle is triggered by an EventBridge schedule.
func (j *RepairPartitions) Handle(ctx context.Context, ev events.CloudWatchEvent) (RepairResult, error) {
	log := logging.Logger.With().Str("event_id", ev.ID).Str("table", j.table.Name).Logger()

	if err := j.schema.Ensure(ctx); err != nil {
		return RepairResult{Ok: false}, err
	}
	res, err := warehouse.RepairPartitions(ctx, j.runner, j.table)
	if err != nil {
		log.Error().Err(err).Msg("partition repair failed")
		return RepairResult{Ok: false}, err
	}
	return RepairResult{
		Ok:       true,
		QueryID:  res.QueryExecutionID,
		Database: j.table.Database,
		Table:    j.table.Name,
		Rows:     len(res.Rows),
	}, nil
}
