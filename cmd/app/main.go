package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/jcsyfill/config"
	"github.com/Domenick1991/jcsyfill/internal/bootstrap"
	"github.com/Domenick1991/jcsyfill/internal/logging"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()
	cfg, err := config.LoadConfig(config.PathFromEnv())
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if !cfg.Log.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init app", zap.Error(err))
	}
	defer app.Close()

	router := bootstrap.NewRouter(app.Handlers(), logger)
	if err := bootstrap.Run(ctx, cfg.HTTP, router, logger); err != nil {
		logger.Error("server error", zap.Error(err))
	}
}
