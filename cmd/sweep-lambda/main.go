package main

import (
	"context"
	"time"

	"github.com/aws/aws-lambda-go/lambda"

	"github.com/andrey-berenda/locadora/internal/pkg/app"
	"github.com/andrey-berenda/locadora/internal/pkg/config"
	"github.com/andrey-berenda/locadora/internal/pkg/functions"
	"github.com/andrey-berenda/locadora/internal/pkg/log"
)

func main() {
	time.Local = time.UTC
	logger := log.NewLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config.Load: %v", err)
	}
	a, err := app.New(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatalf("app.New: %v", err)
	}
	defer a.Close()

	var h lambda.Handler = functions.Sweep{Sweeper: a.Sweeper}
	lambda.Start(h)
}
