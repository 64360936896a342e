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
	x, err := clients.Extractor()
	if err != nil {
		logging.Logger.Fatal().Err(err).Msg("build extractor")
	}

	h := handlers.NewExtractHandler(x)
	lambda.Start(h.Handle)
}
