package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	httptransport "github.com/spec-kit/ticket-premerge/internal/api/http"
	"github.com/spec-kit/ticket-premerge/internal/api/http/handlers"
	"github.com/spec-kit/ticket-premerge/internal/auth"
	"github.com/spec-kit/ticket-premerge/internal/service"
	"github.com/spec-kit/ticket-premerge/internal/worker"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily schedule and the HTTP API",
	Long: `Start the HTTP API (health, metrics, run history, run trigger) and run the
scan every day at SCHEDULE_DAILY_AT in DEDUP_TIMEZONE until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := newApplication(ctx)
		if err != nil {
			return err
		}
		defer app.close()
		app.startNotifier(ctx)
		return serve(ctx, app)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// runDrainTimeout bounds how long shutdown waits for an API-triggered run.
const runDrainTimeout = 5 * time.Minute

func serve(ctx context.Context, app *application) error {
	cfg := app.cfg
	logger := app.logger
	if err := cfg.ValidateAuth(); err != nil {
		return err
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	server := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(server, logger, app.metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(server, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": app.postgres,
			"redis":    app.redis,
		}),
		Runs:            handlers.NewRunsHandler(app.service, app.runs, 365, logger),
		AuthMiddleware:  auth.NewAuthMiddleware(tokens),
		MetricsGatherer: app.metrics.Registry(),
	})

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.App.Addr()))
		return server.Listen(cfg.App.Addr())
	})

	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")
		return server.ShutdownWithTimeout(10 * time.Second)
	})

	if cfg.Schedule.Enabled {
		hour, minute, err := cfg.Schedule.Clock()
		if err != nil {
			return err
		}
		location, err := cfg.Dedup.Location()
		if err != nil {
			return err
		}
		schedule := worker.NewDailySchedule(hour, minute, location, nil, func(ctx context.Context) error {
			_, err := app.service.Run(ctx, service.RunOptions{Trigger: service.TriggerSchedule})
			return err
		}, logger.Named("schedule"))
		group.Go(func() error {
			return schedule.Start(ctx)
		})
	} else {
		logger.Info("daily schedule disabled")
	}

	err := group.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), runDrainTimeout)
	defer cancel()
	if app.service.Running() {
		logger.Info("waiting for in-flight run to finish")
	}
	if drainErr := app.service.Shutdown(drainCtx); drainErr != nil {
		logger.Warn("in-flight run did not finish before shutdown; its run lock expires after RUN_LOCK_TTL",
			zap.Duration("timeout", runDrainTimeout), zap.Error(drainErr))
	}
	return err
}
