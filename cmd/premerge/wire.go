package main

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-premerge/internal/config"
	"github.com/spec-kit/ticket-premerge/internal/events"
	"github.com/spec-kit/ticket-premerge/internal/lock"
	"github.com/spec-kit/ticket-premerge/internal/observability"
	"github.com/spec-kit/ticket-premerge/internal/persistence"
	"github.com/spec-kit/ticket-premerge/internal/report"
	"github.com/spec-kit/ticket-premerge/internal/repository"
	"github.com/spec-kit/ticket-premerge/internal/service"
	"github.com/spec-kit/ticket-premerge/internal/tagging"
	"github.com/spec-kit/ticket-premerge/internal/validation"
	"github.com/spec-kit/ticket-premerge/internal/worker"
	"github.com/spec-kit/ticket-premerge/internal/zendesk"
)

// application holds everything a command needs. close releases backends.
type application struct {
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *observability.Metrics
	postgres *persistence.Postgres
	redis    *persistence.Redis
	runs     repository.RunRepository
	fileSink *report.FileSink
	notifier *worker.NotificationWorker
	// notifierDone is closed once queued webhooks are delivered.
	notifierDone chan struct{}
	service      *service.PreMergeService
}

// loadConfig reads and validates configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApplication(ctx context.Context) (*application, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App)
	if err != nil {
		return nil, fmt.Errorf("failed to init logger: %w", err)
	}

	app := &application{cfg: cfg, logger: logger, metrics: observability.NewMetrics(cfg.App.Name)}

	app.postgres, err = persistence.OpenPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open run history: %w", err)
	}
	app.redis, err = persistence.OpenRedis(ctx, cfg.Redis, cfg.App.Name, logger)
	if err != nil {
		app.close()
		return nil, err
	}

	client, err := zendesk.NewClient(zendesk.Config{
		BaseURL:           cfg.Zendesk.BaseURL,
		Subdomain:         cfg.Zendesk.Subdomain,
		Email:             cfg.Zendesk.Email,
		APIToken:          cfg.Zendesk.APIToken,
		RequestsPerMinute: cfg.Zendesk.RequestsPerMinute,
		HTTPClient:        &http.Client{Timeout: cfg.Zendesk.Timeout()},
		Logger:            logger.Named("zendesk"),
	})
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to build zendesk client: %w", err)
	}

	policy, err := validation.LoadPolicy(cfg.Dedup.RulesFile)
	if err != nil {
		app.close()
		return nil, fmt.Errorf("failed to load rules: %w", err)
	}
	location, err := cfg.Dedup.Location()
	if err != nil {
		app.close()
		return nil, err
	}

	app.fileSink = report.NewFileSink(cfg.Report.Dir, cfg.Report.File, logger)
	sinks := []report.Sink{app.fileSink}
	if app.postgres.Enabled() {
		app.runs = repository.NewRunRepository(app.postgres.PoolHandle())
		sinks = append(sinks, app.runs)
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	app.notifier = worker.StartNotificationWorker(
		service.NewNotificationService(dispatcher, logger.Named("notify"), cfg.Notification), 0, logger.Named("notify"))

	app.service = service.NewPreMergeService(service.Settings{
		WindowDays:     cfg.Dedup.WindowDays,
		MaxPages:       cfg.Dedup.MaxPages,
		SearchFilters:  cfg.Dedup.SearchFilters,
		Location:       location,
		VehicleFieldID: cfg.Dedup.VehicleFieldID,
		Parent: validation.ParentCriteria{
			AreaFieldID: cfg.Dedup.AreaFieldID,
			ServiceArea: cfg.Dedup.ServiceArea,
		},
		Policy: policy,
		Tags:   cfg.Tagging.Tags,
		Tagging: tagging.Options{
			MaxAttempts:       cfg.Tagging.MaxAttempts,
			BackoffBase:       cfg.Tagging.BackoffBase,
			MaxBackoff:        cfg.Tagging.MaxBackoff,
			InterRequestDelay: cfg.Tagging.InterRequestDelay,
		},
	}, service.Dependencies{
		API:        client,
		Locker:     lock.New(app.redis.Client, cfg.Redis.RunLockTTL, logger),
		Sinks:      sinks,
		Dispatcher: dispatcher,
		Metrics:    app.metrics,
		Logger:     logger,
	})
	return app, nil
}

// startNotifier delivers webhooks in the background until close.
func (a *application) startNotifier(ctx context.Context) {
	a.notifierDone = make(chan struct{})
	go func() {
		defer close(a.notifierDone)
		_ = a.notifier.Start(context.WithoutCancel(ctx))
	}()
}

func (a *application) close() {
	if a.notifier != nil {
		a.notifier.Stop()
		if a.notifierDone != nil {
			<-a.notifierDone
		}
	}
	a.redis.Close()
	a.postgres.Close()
	_ = a.logger.Sync()
}
