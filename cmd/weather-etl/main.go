package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/couchcryptid/weather-s3-etl/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/weather-s3-etl/internal/adapter/kafka"
	"github.com/couchcryptid/weather-s3-etl/internal/adapter/openweather"
	"github.com/couchcryptid/weather-s3-etl/internal/adapter/postgres"
	s3adapter "github.com/couchcryptid/weather-s3-etl/internal/adapter/s3"
	"github.com/couchcryptid/weather-s3-etl/internal/adapter/secrets"
	"github.com/couchcryptid/weather-s3-etl/internal/config"
	"github.com/couchcryptid/weather-s3-etl/internal/observability"
	"github.com/couchcryptid/weather-s3-etl/internal/pipeline"
	"github.com/couchcryptid/weather-s3-etl/internal/scheduler"
	"github.com/joho/godotenv"
)

func main() {
	once := flag.Bool("once", false, "run the pipeline once and exit")
	flag.Parse()

	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Error("failed to load aws config", "error", err)
		os.Exit(1)
	}

	provider := secrets.NewProvider(awsCfg, logger)
	weather := openweather.NewClient(cfg.WeatherBaseURL, cfg.City, cfg.WeatherTimeout, logger)
	loader := s3adapter.NewLoader(awsCfg, s3adapter.Options{
		Bucket:       cfg.S3Bucket,
		Endpoint:     cfg.S3Endpoint,
		UsePathStyle: cfg.S3UsePathStyle,
	}, logger)

	var observers []pipeline.RunObserver
	if len(cfg.KafkaBrokers) > 0 {
		publisher := kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
		defer closeWithLog(logger, "kafka publisher", publisher.Close)
		observers = append(observers, publisher)
		logger.Info("run reports published to kafka", "topic", cfg.KafkaTopic)
	}
	if cfg.RunLogDSN != "" {
		runLog, err := postgres.Open(ctx, cfg.RunLogDSN, logger)
		if err != nil {
			logger.Error("failed to open run log", "error", err)
			os.Exit(1)
		}
		defer closeWithLog(logger, "run log", runLog.Close)
		observers = append(observers, runLog)
		logger.Info("run reports recorded in postgres")
	}

	p := pipeline.New(provider, weather, loader, pipeline.Settings{
		SecretID:  cfg.SecretID,
		City:      cfg.City,
		Bucket:    cfg.S3Bucket,
		KeyPrefix: cfg.ObjectKeyPrefix,
	}, logger, metrics, observers...)

	sched := scheduler.New(p, scheduler.Options{
		Schedule:   cfg.Schedule,
		Retries:    cfg.RetryCount,
		RetryDelay: cfg.RetryDelay,
	}, logger)

	if *once {
		report, err := sched.RunNow(ctx)
		if err != nil {
			logger.Error("run failed", "run_id", report.RunID, "error", err)
			os.Exit(1)
		}
		logger.Info("run succeeded", "run_id", report.RunID, "key", report.ObjectKey)
		return
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, sched, logger)

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if err := sched.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "schedule", cfg.Schedule, "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	sched.Stop()

	logger.Info("shutdown complete")
}

func closeWithLog(logger *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.Error(name+" close error", "error", err)
	}
}
