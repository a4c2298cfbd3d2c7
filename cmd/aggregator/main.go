package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/couchcryptid/storm-damage-aggregator/internal/adapter/csvfile"
	httpadapter "github.com/couchcryptid/storm-damage-aggregator/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/storm-damage-aggregator/internal/adapter/kafka"
	"github.com/couchcryptid/storm-damage-aggregator/internal/adapter/noaa"
	"github.com/couchcryptid/storm-damage-aggregator/internal/adapter/regionlayer"
	"github.com/couchcryptid/storm-damage-aggregator/internal/config"
	"github.com/couchcryptid/storm-damage-aggregator/internal/domain"
	"github.com/couchcryptid/storm-damage-aggregator/internal/observability"
	"github.com/couchcryptid/storm-damage-aggregator/internal/pipeline"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	var extractor pipeline.FeedExtractor
	switch cfg.SourceMode {
	case "files":
		extractor = csvfile.NewExtractor(cfg.LocationsPath, cfg.DetailsPath)
		logger.Info("reading feeds from local files",
			"locations", cfg.LocationsPath, "details", cfg.DetailsPath)
	default:
		client := noaa.NewClient(cfg.NCEIBaseURL, cfg.FetchTimeout, cfg.FetchMaxAttempts, logger, metrics)
		extractor = noaa.NewExtractor(client, logger)
		logger.Info("fetching feeds from NCEI", "base_url", cfg.NCEIBaseURL)
	}

	regions := regionlayer.NewLoader(cfg.RegionLayerPath, cfg.RegionIDField, logger)

	loaders := []pipeline.ResultLoader{csvfile.NewSink(cfg.OutputPath)}

	// Kafka publishing (feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS).
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg.KafkaBrokers, cfg.KafkaSinkTopic, logger)
		loaders = append(loaders, publisher)
		logger.Info("kafka publishing enabled", "topic", cfg.KafkaSinkTopic)
	} else {
		logger.Info("kafka publishing disabled")
	}

	p := pipeline.New(extractor, regions, loaders, domain.NewNormalizer(nil),
		logger, metrics, cfg.LocateWorkers, cfg.LocateCacheSize)

	srv := httpadapter.NewServer(cfg.HTTPAddr, p, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Run the aggregation pass. The server keeps serving the summary and
	// metrics afterwards until a signal arrives.
	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
