package main

import (
	"context"
	"log"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/Domenick1991/jcsyfill/config"
	"github.com/Domenick1991/jcsyfill/internal/bootstrap"
	"github.com/Domenick1991/jcsyfill/internal/kafka"
	"github.com/Domenick1991/jcsyfill/internal/logging"
	"github.com/Domenick1991/jcsyfill/internal/spool"
	"github.com/gin-gonic/gin"
	kafkaGo "github.com/segmentio/kafka-go"
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

	var wg sync.WaitGroup
	if addr := cfg.Worker.MetricsAddress; addr != "-" {
		router := bootstrap.NewRouter(bootstrap.Handlers{Metrics: app.Metrics}, logger)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bootstrap.Run(ctx, config.HTTPConfig{Address: addr}, router, logger); err != nil {
				logger.Error("metrics server stopped", zap.Error(err))
			}
		}()
	}
	if cfg.Kafka.Enabled() {
		lists := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.ListsTopic, logger)
		defer lists.Close()
		results := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID+"-spool", cfg.Kafka.ResultsTopic, logger)
		defer results.Close()
		spooler := spool.NewSpooler(cfg.Spool, logger)

		wg.Add(2)
		go func() {
			defer wg.Done()
			err := lists.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
				event, ok := kafka.Decode[kafka.ListSubmitted](logger, msg)
				if !ok {
					return nil
				}
				out, err := app.Processor.Process(ctx, event.Text)
				if err != nil {
					logger.Warn("submitted list failed", zap.String("id", event.ID), zap.Error(err))
					return nil
				}
				logger.Info("submitted list processed", zap.String("id", event.ID), zap.Int64("list_id", out.List.ID))
				return nil
			})
			if err != nil {
				logger.Error("lists consumer stopped", zap.Error(err))
			}
		}()
		go func() {
			defer wg.Done()
			err := results.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
				event, ok := kafka.Decode[kafka.ListEvent](logger, msg)
				if !ok {
					return nil
				}
				if err := spooler.Send(ctx, event); err != nil {
					logger.Warn("spool failed", zap.String("code", event.Code), zap.Error(err))
				}
				return nil
			})
			if err != nil {
				logger.Error("results consumer stopped", zap.Error(err))
			}
		}()
	} else {
		logger.Info("kafka not configured, only refreshing unresolved rows")
	}

	refreshTicker := time.NewTicker(time.Duration(cfg.Worker.RefreshMinutes) * time.Minute)
	defer refreshTicker.Stop()
	window := time.Duration(cfg.Worker.RefreshWindowHours) * time.Hour

	for {
		select {
		case <-refreshTicker.C:
			n, err := app.Processor.RefreshUnresolved(ctx, time.Now().Add(-window))
			if err != nil {
				logger.Warn("refresh unresolved rows", zap.Error(err))
			}
			if n > 0 {
				logger.Info("refreshed lists", zap.Int("count", n))
			}
		case <-ctx.Done():
			logger.Info("shutting down")
			wg.Wait()
			return
		}
	}
}
