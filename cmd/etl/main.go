// Command etl runs one end-to-end pipeline pass: load the county source
// CSVs, derive the risk index, optionally forecast it with watsonx.ai, and
// atomically replace the processed risk export.
//
// Usage:
//
//	DATA_DIR=data/datasets PROCESSED_FILE=data/processed/regional_risk.csv \
//	  go run ./cmd/etl
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	kafkaadapter "github.com/federalrisk/county-risk-etl/internal/adapter/kafka"
	"github.com/federalrisk/county-risk-etl/internal/adapter/watsonx"
	"github.com/federalrisk/county-risk-etl/internal/config"
	"github.com/federalrisk/county-risk-etl/internal/domain"
	"github.com/federalrisk/county-risk-etl/internal/geo"
	"github.com/federalrisk/county-risk-etl/internal/observability"
	"github.com/federalrisk/county-risk-etl/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	sources, err := config.LoadSources(cfg.SourcesFile)
	if err != nil {
		logger.Error("failed to load source specs", "error", err)
		os.Exit(1)
	}

	params := pipeline.Params{
		Config:   cfg,
		Sources:  sources,
		Geocoder: geo.StateCentroids{},
		Logger:   logger,
		Metrics:  metrics,
	}

	var summarizer *watsonx.TextGenerator
	if cfg.ForecastEnabled() || cfg.SummaryEnabled {
		client := watsonx.NewClient(watsonx.Config{
			APIKey:      cfg.APIKey,
			ProjectID:   cfg.ProjectID,
			BaseURL:     cfg.WatsonxURL,
			IAMURL:      cfg.IAMURL,
			TSModelID:   cfg.TSModelID,
			TextModelID: cfg.ModelID,
			Timeout:     cfg.ForecastTimeout,
			MaxRetries:  cfg.ForecastMaxRetries,
			Horizon:     cfg.ForecastHorizon,
		}, logger)
		summarizer = watsonx.NewTextGenerator(client)

		var forecaster domain.Forecaster
		switch cfg.ForecastMode {
		case config.ForecastTimeSeries:
			forecaster = watsonx.NewTimeSeriesForecaster(client)
		case config.ForecastTextGen:
			forecaster = summarizer
		}
		params.Forecaster = forecaster
		logger.Info("forecasting configured", "mode", cfg.ForecastMode)
	} else {
		logger.Info("forecasting disabled, exporting latest actuals")
	}
	if cfg.SummaryEnabled {
		params.Summarizer = summarizer
	}

	if cfg.KafkaEnabled() {
		writer := kafkaadapter.NewWriter(cfg, logger)
		defer func() {
			if err := writer.Close(); err != nil {
				logger.Error("kafka writer close error", "error", err)
			}
		}()
		params.Publisher = writer
		logger.Info("kafka sink enabled", "topic", cfg.KafkaTopic)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := pipeline.New(params).Run(ctx); err != nil {
		logger.Error("pipeline run failed", "error", err)
		os.Exit(1)
	}
}
