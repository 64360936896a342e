package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"

	"ventureai/internal/bootstrap"
	"ventureai/internal/handlers"
	"ventureai/internal/logging"
)

func main() {
	clients, err := bootstrap.Load(context.Background())
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("load aws config")
	}

	h := handlers.NewDashboardHandler(clients.Queries())
	lambda.Start(h.Handle)
}
