package main

import (
	"context"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-xray-sdk-go/xray"

	adapterlogger "accountx/internal/adapters/logger"
	"accountx/internal/app"
	"accountx/internal/infrastructure/config"
	platformlambda "accountx/internal/platform/lambda"
)

func main() {
	ctx := context.Background()
	logger := adapterlogger.New()

	cfg, err := config.Load(os.Getenv("APP_ENV"))
	if err != nil {
		logger.Error(ctx, "configuration error", "error", err)
		os.Exit(1)
	}
	if logger, err = adapterlogger.NewWithLevel(cfg.Logging.Level); err != nil {
		adapterlogger.New().Error(ctx, "configuration error", "error", err)
		os.Exit(1)
	}
	xray.Configure(xray.Config{LogLevel: "error"})

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "failed to initialize application", "error", err)
		os.Exit(1)
	}
	awslambda.Start(platformlambda.NewLambdaHandler(a.Echo, logger))
}
