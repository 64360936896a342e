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
	broker, err := clients.Broker()
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("build session broker")
	}

	h := handlers.NewSessionHandler(broker)
	lambda.Start(h.Handle)
}
