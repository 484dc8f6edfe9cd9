package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/jcsyfill/api"
	"github.com/Domenick1991/jcsyfill/config"
	"github.com/Domenick1991/jcsyfill/internal/cache"
	"github.com/Domenick1991/jcsyfill/internal/jcsy"
	"github.com/Domenick1991/jcsyfill/internal/kafka"
	"github.com/Domenick1991/jcsyfill/internal/metrics"
	"github.com/Domenick1991/jcsyfill/internal/render"
	"github.com/Domenick1991/jcsyfill/internal/repository"
	"github.com/Domenick1991/jcsyfill/internal/service/lookup"
	"github.com/Domenick1991/jcsyfill/internal/service/processing"
	"github.com/Domenick1991/jcsyfill/internal/status"
	"go.uber.org/zap"
)

// App holds the services shared by the server, the worker and the CLI.
// Cache and Producer are nil when Redis or Kafka are not configured.
type App struct {
	Config    *config.Config
	Logger    *zap.Logger
	Repo      repository.ListRepository
	Cache     *cache.RedisCache
	Producer  *kafka.Producer
	Metrics   *metrics.Metrics
	Lookup    *lookup.LookupService
	Processor *processing.Processor
}

// NewApp connects storage and optional Redis and Kafka, and builds the
// lookup and processing services. extra options are applied to the
// processor after the configured ones.
func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger, extra ...processing.Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	app := &App{Config: cfg, Logger: logger, Metrics: metrics.New(nil)}

	schema := jcsy.DefaultSchema()
	if cfg.Parser.SchemaPath != "" {
		s, err := jcsy.LoadSchema(cfg.Parser.SchemaPath)
		if err != nil {
			return nil, fmt.Errorf("load parser schema: %w", err)
		}
		schema = s
	}

	fetcher := status.NewFetcher(cfg.Lookup, logger)
	sources, err := status.NewSources(cfg.Lookup, fetcher)
	if err != nil {
		return nil, err
	}

	repo, err := repository.Open(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	app.Repo = repo

	if cfg.Redis.Addr != "" {
		rc := cache.NewRedisCache(cfg.Redis)
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, running without cache", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
			_ = rc.Close()
		} else {
			app.Cache = rc
		}
	}
	if cfg.Kafka.Enabled() {
		app.Producer = kafka.NewProducer(cfg.Kafka.Brokers, logger)
	}

	var lookupCache lookup.Cache
	if app.Cache != nil {
		lookupCache = app.Cache
	}
	app.Lookup = lookup.NewLookupService(sources, lookupCache, logger,
		lookup.WithPreviousDay(cfg.Lookup.PreviousDay()),
		lookup.WithMetrics(app.Metrics))

	opts := []processing.Option{
		processing.WithWorkers(cfg.Lookup.Workers),
		processing.WithMetrics(app.Metrics),
	}
	if app.Cache != nil {
		opts = append(opts, processing.WithLocker(app.Cache))
	}
	if app.Producer != nil {
		opts = append(opts, processing.WithProducer(app.Producer, cfg.Kafka.ResultsTopic))
	}
	app.Processor = processing.NewProcessor(repo, app.Lookup, jcsy.NewParser(schema), logger, append(opts, extra...)...)

	return app, nil
}

// Handlers builds the HTTP handlers for the app's services.
func (a *App) Handlers() Handlers {
	var listOpts []api.ListHandlerOption
	if a.Producer != nil {
		listOpts = append(listOpts, api.WithSubmitter(a.Producer, a.Config.Kafka.ListsTopic))
	}
	return Handlers{
		Lists:   api.NewListHandler(a.Processor, a.Repo, render.TemplatesFrom(a.Config.Render), listOpts...),
		Lookup:  api.NewLookupHandler(a.Lookup),
		Metrics: a.Metrics,
		Ready: func(ctx context.Context) error {
			_, err := a.Repo.RecentLists(ctx, 1)
			return err
		},
	}
}

func (a *App) Close() error {
	var errs []error
	if a.Producer != nil {
		errs = append(errs, a.Producer.Close())
	}
	if a.Cache != nil {
		errs = append(errs, a.Cache.Close())
	}
	if a.Repo != nil {
		errs = append(errs, a.Repo.Close())
	}
	return errors.Join(errs...)
}
