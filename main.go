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

	"arbiscan/channel"
	"arbiscan/config"
	"arbiscan/logger"
	"arbiscan/reporter"
	"arbiscan/scanner"
	"arbiscan/venue"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
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
		"service": cfg.Arbiscan.Name,
		"version": cfg.Arbiscan.Version,
	}).Info("starting arbiscan")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch {
		logger.InitCloudWatch(cfg.Storage.S3.Region, cfg.Metrics.Namespace, cfg.Logging.DashboardName)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" {
		logger.StartReport(ctx, log, 30*time.Second)
	}

	registry, err := venue.NewRegistry(cfg)
	if err != nil {
		log.WithError(err).Error("failed to build venue registry")
		os.Exit(1)
	}
	defer registry.Close()

	channels := channel.NewChannels(cfg.Channels.SnapshotBuffer)
	defer channels.Close()

	var sinks []reporter.Sink
	if cfg.Reporter.Table.Enabled {
		sinks = append(sinks, reporter.NewTable(cfg.Reporter.Table))
	}
	if cfg.Reporter.OpportunityLog.Enabled {
		sinks = append(sinks, reporter.NewOpportunityLog(cfg.Reporter.OpportunityLog))
	}

	var archiver *reporter.Archiver
	if cfg.Storage.S3.Enabled {
		archiver, err = reporter.NewArchiver(cfg)
		if err != nil {
			log.WithError(err).Error("failed to create S3 archiver")
			os.Exit(1)
		}
		sinks = append(sinks, archiver)
	} else {
		log.WithComponent("main").Info("S3 storage disabled; skipping archiver")
	}

	multi := reporter.NewMulti(channels, sinks...)
	if err := multi.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start reporter")
		os.Exit(1)
	}
	if archiver != nil {
		if err := archiver.Start(ctx); err != nil {
			log.WithError(err).Error("failed to start S3 archiver")
			os.Exit(1)
		}
	}

	loop := scanner.NewLoop(cfg, registry.Sources(), registry.Fees(), channels)
	if err := loop.Start(ctx); err != nil {
		log.WithError(err).Error("failed to start scan loop")
		os.Exit(1)
	}

	log.Info("all components started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")

	log.Info("starting graceful shutdown")
	cancel()

	log.Info("stopping scan loop")
	loop.Stop()

	log.Info("stopping reporter")
	multi.Stop()

	if archiver != nil {
		log.Info("stopping S3 archiver")
		archiver.Stop()
	}

	log.Info("arbiscan stopped")
}
