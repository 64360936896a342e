package main

import (
	"github.com/aws/aws-lambda-go/lambda"

	"ventureai/internal/config"
	"ventureai/internal/handlers"
)

func main() {
	lambda.Start(handlers.Health(config.AppName() + "-backend"))
}
