package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"ventureai/internal/bootstrap"
	"ventureai/internal/etl"
	"ventureai/internal/logging"
)

func main() {
	clients, err := bootstrap.Load(context.Background())
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("load aws config")
	}

	// MSCK REPAIR walks every partition prefix, so give it longer than a dashboard query.
	job := etl.NewRepairPartitions(clients.Schema(), clients.Runner(60*time.Second), clients.Table())
	lambda.Start(job.Handle)
}
