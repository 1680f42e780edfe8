// Package main is the entry point for the ecoq telemetry daemon. It wires
// configuration, the service manager, the optional Kafka and InfluxDB
// integrations and the HTTP API, then runs until signalled.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/api"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/config"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/export"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/ingest"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/logger"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/services"
	"github.com/YGNTECHSTARTUP/ecoq-sub001/internal/version"
)

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "-v" || os.Args[1] == "--version") {
		fmt.Println(version.Info())
		os.Exit(0)
	}

	if len(os.Args) > 1 && (os.Args[1] == "-h" || os.Args[1] == "--help") {
		printUsage()
		os.Exit(0)
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run contains the daemon lifecycle, separated for cleaner error handling.
func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	manager, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := manager.Close(); closeErr != nil {
			logger.Error("error closing services", "error", closeErr)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Monitoring loops, queue flushing and the analytics timers.
	manager.Start()

	if cfg.Influx.Enabled {
		exporter, err := export.NewInfluxExporter(cfg.Influx)
		if err != nil {
			return fmt.Errorf("failed to connect exporter: %w", err)
		}
		defer exporter.Close()
		go exportInsights(manager, exporter)
	}

	if cfg.Kafka.Enabled {
		consumer, err := ingest.NewConsumer(cfg.Kafka, manager.Telemetry())
		if err != nil {
			return fmt.Errorf("failed to start kafka consumer: %w", err)
		}
		defer func() { _ = consumer.Close() }()
		go func() {
			if err := consumer.Consume(ctx); err != nil {
				logger.Error("kafka consumer stopped", "error", err)
			}
		}()
	}

	server := api.NewServer(cfg.HTTPAddr, manager)
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	logger.Info("ecoqd started", "version", version.Info(), "addr", cfg.HTTPAddr)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	return nil
}

// exportInsights forwards analytics insights to InfluxDB as they are
// produced.
func exportInsights(manager *services.Manager, exporter *export.InfluxExporter) {
	ch := manager.Subscribe()
	for event := range ch {
		if insights, ok := event.(services.InsightsEvent); ok {
			exporter.WriteInsights(insights.Insights)
			exporter.Flush()
		}
	}
}

// printUsage prints the command-line usage information.
func printUsage() {
	fmt.Println(`ecoqd - energy telemetry ingestion and analytics daemon

Usage:
  ecoqd [flags]

Flags:
  -h, --help      Show this help message
  -v, --version   Show version information

Configuration is read from the environment (optionally via a .env file):
  DATABASE_PATH, REGISTRY_PATH, REFERENCES_PATH, HTTP_ADDR,
  UPDATE_INTERVAL, SYNC_INTERVAL, ANALYTICS_INTERVAL, BATCH_SIZE,
  DATA_RETENTION_DAYS, ALERT_*, KAFKA_*, INFLUX_*`)
}
