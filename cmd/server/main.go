package main

import (
	"context"
	"log/slog"
	"os"

	"teamtasks/backend/internal/app"
	"teamtasks/backend/internal/config"
	"teamtasks/backend/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	log := logging.Setup(cfg.Log)

	ctx := context.Background()
	application, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize application", "error", err)
		os.Exit(1)
	}

	if err := application.Run(ctx); err != nil {
		log.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}
