package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/sellerhub-backend/internal/cron"
	"github.com/angelmondragon/sellerhub-backend/pkg/config"
	"github.com/angelmondragon/sellerhub-backend/pkg/db"
	"github.com/angelmondragon/sellerhub-backend/pkg/instance"
	"github.com/angelmondragon/sellerhub-backend/pkg/logger"
	"github.com/angelmondragon/sellerhub-backend/pkg/metrics"
	"github.com/angelmondragon/sellerhub-backend/pkg/migrate"
	"github.com/angelmondragon/sellerhub-backend/pkg/outbox"
	"github.com/angelmondragon/sellerhub-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run every job a single time and exit")
	only := flag.String("jobs", "", "comma separated job names to run (default all)")
	metricsAddr := flag.String("metrics-addr", "", "serve prometheus metrics on this address (disabled when empty)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Instance:    instance.GetID(),
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	if err := run(cfg, logg, *once, strings.Split(*only, ","), *metricsAddr); err != nil {
		logg.Error(context.Background(), "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger, once bool, jobNames []string, metricsAddr string) (err error) {
	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		return err
	}
	closers := []func() error{dbClient.Close}
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			err = multierr.Append(err, closers[i]())
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		return err
	}

	var lock cron.Lock = &cron.LocalLock{}
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
		if err != nil {
			return err
		}
		closers = append(closers, redisClient.Close)
		lock, err = cron.NewRedisLock(redisClient, redisClient.CronLockKey(cfg.App.Env), 0)
		if err != nil {
			return err
		}
	} else {
		logg.Warn(context.Background(), "redis not configured; cron cycles are only exclusive within this process")
	}

	jobMetrics := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)
	outboxParams := cron.OutboxJobParams{
		Logger:           logg,
		DB:               dbClient,
		Repository:       outbox.NewRepository(dbClient.DB()),
		Metrics:          jobMetrics,
		RetentionDays:    cfg.Cron.OutboxRetentionDays,
		TerminalAttempts: cfg.Outbox.MaxAttempts,
	}
	retentionJob, err := cron.NewOutboxRetentionJob(outboxParams)
	if err != nil {
		return err
	}
	backlogJob, err := cron.NewOutboxBacklogJob(outboxParams)
	if err != nil {
		return err
	}

	registry, err := cron.NewRegistry(backlogJob, retentionJob)
	if err != nil {
		return err
	}
	if registry, err = registry.Select(jobNames...); err != nil {
		return err
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"interval": cfg.Cron.Interval.String(),
	})

	if metricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, logg, metricsAddr); err != nil {
				logg.Error(ctx, "metrics server stopped", err)
			}
		}()
	}

	if once {
		logg.Info(ctx, "running cron jobs once")
		return service.RunOnce(ctx)
	}

	logg.Info(ctx, "starting cron worker")
	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
	return nil
}
