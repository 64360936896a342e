package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"ventureai/internal/bootstrap"
	"ventureai/internal/handlers"
	"ventureai/internal/logging"
)

func main() {
	ctx := context.Background()

	clients, err := bootstrap.Load(ctx)
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("load aws config")
	}
	svc, err := clients.AnalysisService(ctx)
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("build analysis service")
	}

	h := handlers.NewAnalysisHandler(svc)
	lambda.Start(h.Handle)
}
