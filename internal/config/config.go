package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Forecast modes accepted by FORECAST_MODE.
const (
	ForecastOff        = "off"
	ForecastTimeSeries = "timeseries"
	ForecastTextGen    = "textgen"
)

// Config holds all pipeline settings, populated from environment variables.
// Credentials are read once here and never logged.
type Config struct {
	DataDir       string
	ProcessedFile string
	SourcesFile   string // optional YAML manifest overriding the built-in source specs

	LogLevel  string
	LogFormat string

	HTTPAddr        string
	ShutdownTimeout time.Duration

	// watsonx forecast configuration.
	APIKey             string
	ProjectID          string
	WatsonxURL         string
	IAMURL             string
	ModelID            string // text generation model
	TSModelID          string // time series model
	ForecastMode       string
	ForecastTimeout    time.Duration
	ForecastMaxRetries int
	ForecastHorizon    int

	// Optional plain-English impact summary written next to the export.
	SummaryEnabled bool
	SummaryFile    string

	// Optional Kafka sink for risk records.
	KafkaBrokers []string
	KafkaTopic   string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	forecastTimeout, err := parseDuration("FORECAST_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	maxRetries, err := parseInt("FORECAST_MAX_RETRIES", 3, 0, 10)
	if err != nil {
		return nil, err
	}
	horizon, err := parseInt("FORECAST_HORIZON", 3, 1, 96)
	if err != nil {
		return nil, err
	}

	apiKey := os.Getenv("API_KEY")
	projectID := os.Getenv("PROJECT_ID")

	// Credentials imply forecasting unless FORECAST_MODE says otherwise.
	mode := os.Getenv("FORECAST_MODE")
	if mode == "" {
		if apiKey != "" && projectID != "" {
			mode = ForecastTimeSeries
		} else {
			mode = ForecastOff
		}
	}

	cfg := &Config{
		DataDir:       envOrDefault("DATA_DIR", "data/datasets"),
		ProcessedFile: envOrDefault("PROCESSED_FILE", "data/processed/regional_risk.csv"),
		SourcesFile:   os.Getenv("SOURCES_FILE"),

		LogLevel:  envOrDefault("LOG_LEVEL", "info"),
		LogFormat: envOrDefault("LOG_FORMAT", "json"),

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		ShutdownTimeout: shutdownTimeout,

		APIKey:             apiKey,
		ProjectID:          projectID,
		WatsonxURL:         envOrDefault("WATSONX_URL", "https://us-south.ml.cloud.ibm.com"),
		IAMURL:             envOrDefault("IAM_URL", "https://iam.cloud.ibm.com/identity/token"),
		ModelID:            envOrDefault("MODEL_ID", "ibm/granite-3-8b-instruct"),
		TSModelID:          envOrDefault("TS_MODEL_ID", "ibm/granite-ttm-512-96-r2"),
		ForecastMode:       mode,
		ForecastTimeout:    forecastTimeout,
		ForecastMaxRetries: maxRetries,
		ForecastHorizon:    horizon,

		SummaryEnabled: os.Getenv("SUMMARY_ENABLED") == "true",
		SummaryFile:    envOrDefault("SUMMARY_FILE", "data/processed/impact_summary.txt"),

		KafkaBrokers: parseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envOrDefault("KAFKA_TOPIC", "county-risk-scores"),
	}

	switch cfg.ForecastMode {
	case ForecastOff, ForecastTimeSeries, ForecastTextGen:
	default:
		return nil, fmt.Errorf("invalid FORECAST_MODE %q", cfg.ForecastMode)
	}
	if cfg.ForecastMode != ForecastOff && (cfg.APIKey == "" || cfg.ProjectID == "") {
		return nil, errors.New("FORECAST_MODE requires API_KEY and PROJECT_ID")
	}
	if cfg.SummaryEnabled && (cfg.APIKey == "" || cfg.ProjectID == "") {
		return nil, errors.New("SUMMARY_ENABLED requires API_KEY and PROJECT_ID")
	}
	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.ProcessedFile == "" {
		return nil, errors.New("PROCESSED_FILE is required")
	}

	return cfg, nil
}

// ForecastEnabled reports whether the forecast stage should run.
func (c *Config) ForecastEnabled() bool {
	return c.ForecastMode != ForecastOff
}

// KafkaEnabled reports whether risk records should also be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(envOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, fallback, minVal, maxVal int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minVal || n > maxVal {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
