package main

import (
	"context"
	"os"

	adapterlogger "accountx/internal/adapters/logger"
)

func main() {
	logger := adapterlogger.New()
	if err := newRootCmd(openMigrator, logger).Execute(); err != nil {
		logger.Error(context.Background(), "migrate failed", "error", err)
		os.Exit(1)
	}
}
