package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stockpulse/config"
	"stockpulse/logger"
	"stockpulse/processor"
	"stockpulse/reader/yahoo"
	"stockpulse/server"
)

func main() {
	log := logger.GetLogger()

	// .env is a development convenience; production-like deployments get
	// their environment from the orchestrator.
	env := config.AppEnvironment()
	if !config.IsProductionLike(env) {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			log.WithError(err).Warn("Error loading .env file")
		}
	}

	configPath := flag.String("config", "config/config.yml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service":     cfg.Stockpulse.Name,
		"version":     cfg.Stockpulse.Version,
		"environment": env,
	}).Info("starting stockpulse")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(
			cfg.Metrics.CloudWatch.Region,
			cfg.Metrics.CloudWatch.Namespace,
			cfg.Metrics.CloudWatch.Dashboard,
		)
	}

	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	reader := yahoo.NewReader(cfg)
	aggregator := processor.NewAggregator(cfg, reader)
	srv := server.NewServer(cfg, aggregator)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
		cancel()
		if err := <-errCh; err != nil {
			log.WithError(err).Error("graceful shutdown failed")
			os.Exit(1)
		}
	case err := <-errCh:
		if err != nil {
			log.WithError(err).Error("server exited with error")
			os.Exit(1)
		}
	}

	log.Info("stockpulse stopped")
}
