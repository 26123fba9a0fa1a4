package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/aws/aws-xray-sdk-go/xray"

	adapterlogger "accountx/internal/adapters/logger"
	"accountx/internal/app"
	"accountx/internal/infrastructure/config"
)

func main() {
	logger := adapterlogger.New()

	cfg, err := config.Load(os.Getenv("APP_ENV"))
	if err != nil {
		logger.Error(context.Background(), "configuration error", "error", err)
		os.Exit(1)
	}
	if logger, err = adapterlogger.NewWithLevel(cfg.Logging.Level); err != nil {
		adapterlogger.New().Error(context.Background(), "configuration error", "error", err)
		os.Exit(1)
	}
	xray.Configure(xray.Config{LogLevel: "error"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "failed to initialize application", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	go func() {
		logger.Info(ctx, "starting http server", "port", cfg.Server.Port)
		if err := a.Echo.Start(":" + strconv.Itoa(cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.Echo.Shutdown(shutdownCtx); err != nil {
		logger.Error(shutdownCtx, "graceful shutdown failed", "error", err)
	}
	logger.Info(shutdownCtx, "http server stopped")
}
