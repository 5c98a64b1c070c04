package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/federalrisk/county-risk-etl/internal/adapter/csvfile"
	"github.com/federalrisk/county-risk-etl/internal/config"
	"github.com/federalrisk/county-risk-etl/internal/domain"
	"github.com/federalrisk/county-risk-etl/internal/geo"
	"github.com/federalrisk/county-risk-etl/internal/observability"
)

type stubForecaster struct {
	value float64
	err   error
	calls int
}

func (s *stubForecaster) ForecastSeries(_ context.Context, _ domain.JoinKey, _ domain.Series) (domain.Forecast, error) {
	s.calls++
	if s.err != nil {
		return domain.Forecast{}, s.err
	}
	return domain.Forecast{Value: s.value, Mode: "timeseries"}, nil
}

type stubPublisher struct {
	published [][]domain.RiskRecord
	err       error
}

func (s *stubPublisher) PublishBatch(_ context.Context, records []domain.RiskRecord) error {
	if s.err != nil {
		return s.err
	}
	s.published = append(s.published, records)
	return nil
}

type stubSummarizer struct {
	summary string
	err     error
}

func (s *stubSummarizer) GenerateSummary(context.Context, []domain.RiskRecord) (string, error) {
	return s.summary, s.err
}

// writeFixtures lays out the four source files with two counties and two
// months of history. Headers deliberately use the publishers' messy forms.
func writeFixtures(t *testing.T, dir string) {
	t.Helper()
	files := map[string]string{
		"unemploymentByCounty.csv": "County,State FIPS Code,Period,Unemployment Rate (%)\n" +
			"cook county,17,24-Jan,5.2\n" +
			"cook county,17,24-Feb,5.6\n" +
			"ada,16,24-Jan,3.1\n" +
			"ada,16,24-Feb,3.0\n",
		"federalEmploymentByCounty.csv": "County,State,Year,January Employment,February Employment\n" +
			"Cook,IL,2024,\"1,200\",1250\n" +
			"Ada,ID,2024,300,310\n",
		"snapParticipationByCounty.csv": "County Name,State Name,SNAP Households\n" +
			"Cook County,Illinois,50000\n" +
			"Ada,Idaho,4000\n",
		"costOfLivingByCounty.csv": "County,State,Total Cost\n" +
			"Cook,IL,85000\n" +
			"Ada,ID,60000\n",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		DataDir:         dir,
		ProcessedFile:   filepath.Join(dir, "processed", "regional_risk.csv"),
		ForecastMode:    config.ForecastTimeSeries,
		ForecastTimeout: time.Second,
		SummaryFile:     filepath.Join(dir, "processed", "impact_summary.txt"),
	}
}

func newTestPipeline(cfg *config.Config, opts ...func(*Params)) *Pipeline {
	params := Params{
		Config:   cfg,
		Sources:  config.DefaultSources(),
		Geocoder: geo.StateCentroids{},
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:  observability.NewMetricsForTesting(),
	}
	for _, opt := range opts {
		opt(&params)
	}
	return New(params)
}

func TestPipelineRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	cfg := testConfig(dir)

	p := newTestPipeline(cfg)
	require.NoError(t, p.Run(context.Background()))

	records, err := csvfile.ReadRiskRecords(cfg.ProcessedFile)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Counties come out sorted by name.
	assert.Equal(t, "Ada", records[0].County)
	assert.Equal(t, "ID", records[0].State)
	assert.Equal(t, "Cook", records[1].County)
	assert.Equal(t, "IL", records[1].State)

	// Coordinates are the state centroids.
	assert.InDelta(t, 44.240459, records[0].Lat, 1e-6)
	assert.InDelta(t, 40.349457, records[1].Lat, 1e-6)

	for _, rec := range records {
		assert.False(t, rec.RiskScore < 0, "risk score must be non-negative: %v", rec)
	}
}

func TestPipelineRun_Deterministic(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	cfg := testConfig(dir)

	p := newTestPipeline(cfg)
	require.NoError(t, p.Run(context.Background()))
	first, err := os.ReadFile(cfg.ProcessedFile)
	require.NoError(t, err)

	require.NoError(t, p.Run(context.Background()))
	second, err := os.ReadFile(cfg.ProcessedFile)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second))
}

func TestPipelineRun_ForecastRaisesScore(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	cfg := testConfig(dir)

	forecaster := &stubForecaster{value: 999}
	p := newTestPipeline(cfg, func(params *Params) { params.Forecaster = forecaster })
	require.NoError(t, p.Run(context.Background()))

	records, err := csvfile.ReadRiskRecords(cfg.ProcessedFile)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 2, forecaster.calls)
	for _, rec := range records {
		assert.InDelta(t, 999, rec.RiskScore, 1e-9)
	}
}

func TestPipelineRun_ForecastNeverLowersScore(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	cfg := testConfig(dir)

	// Baseline without forecasting.
	require.NoError(t, newTestPipeline(cfg).Run(context.Background()))
	baseline, err := csvfile.ReadRiskRecords(cfg.ProcessedFile)
	require.NoError(t, err)

	// A pessimistically low forecast must not pull scores down.
	p := newTestPipeline(cfg, func(params *Params) {
		params.Forecaster = &stubForecaster{value: -1000}
	})
	require.NoError(t, p.Run(context.Background()))
	records, err := csvfile.ReadRiskRecords(cfg.ProcessedFile)
	require.NoError(t, err)

	require.Len(t, records, len(baseline))
	for i := range records {
		assert.InDelta(t, baseline[i].RiskScore, records[i].RiskScore, 1e-9)
	}
}

func TestPipelineRun_ForecastFailureDegrades(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	cfg := testConfig(dir)

	p := newTestPipeline(cfg, func(params *Params) {
		params.Forecaster = &stubForecaster{err: errors.New("model unavailable")}
	})
	require.NoError(t, p.Run(context.Background()))

	records, err := csvfile.ReadRiskRecords(cfg.ProcessedFile)
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestPipelineRun_MissingSourceFileAborts(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "snapParticipationByCounty.csv")))
	cfg := testConfig(dir)

	err := newTestPipeline(cfg).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load snap")
	assert.NoFileExists(t, cfg.ProcessedFile)
}

func TestPipelineRun_SchemaErrorLeavesExportUntouched(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	cfg := testConfig(dir)

	// A previous good export exists.
	stale := []domain.RiskRecord{{Region: "Ada, ID", County: "Ada", State: "ID", RiskScore: 1}}
	require.NoError(t, csvfile.WriteRiskRecords(cfg.ProcessedFile, stale))

	// Break the spine: no county column at all.
	broken := "Period,Unemployment Rate (%)\n24-Jan,5.2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unemploymentByCounty.csv"), []byte(broken), 0o644))

	err := newTestPipeline(cfg).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "normalize unemployment")

	records, readErr := csvfile.ReadRiskRecords(cfg.ProcessedFile)
	require.NoError(t, readErr)
	require.Len(t, records, 1)
	assert.Equal(t, "Ada", records[0].County)
}

func TestPipelineRun_DisjointKeysExportsEmpty(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	// Spine counties that no other source mentions.
	spine := "County,State FIPS Code,Period,Unemployment Rate (%)\n" +
		"nowhere,56,24-Jan,9.9\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "unemploymentByCounty.csv"), []byte(spine), 0o644))
	cfg := testConfig(dir)

	require.NoError(t, newTestPipeline(cfg).Run(context.Background()))

	records, err := csvfile.ReadRiskRecords(cfg.ProcessedFile)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestPipelineRun_PublishAndSummary(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	cfg := testConfig(dir)
	cfg.SummaryEnabled = true

	publisher := &stubPublisher{}
	summarizer := &stubSummarizer{summary: "risk is concentrated in two counties"}
	p := newTestPipeline(cfg, func(params *Params) {
		params.Publisher = publisher
		params.Summarizer = summarizer
	})
	require.NoError(t, p.Run(context.Background()))

	require.Len(t, publisher.published, 1)
	assert.Len(t, publisher.published[0], 2)

	data, err := os.ReadFile(cfg.SummaryFile)
	require.NoError(t, err)
	assert.Equal(t, "risk is concentrated in two counties\n", string(data))
}

func TestPipelineRun_SummaryFailureDoesNotFailRun(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	cfg := testConfig(dir)
	cfg.SummaryEnabled = true

	p := newTestPipeline(cfg, func(params *Params) {
		params.Summarizer = &stubSummarizer{err: errors.New("model down")}
	})
	require.NoError(t, p.Run(context.Background()))

	assert.NoFileExists(t, cfg.SummaryFile)
	assert.FileExists(t, cfg.ProcessedFile)
}

func TestPipelineRun_PublishFailureFailsRun(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	cfg := testConfig(dir)

	p := newTestPipeline(cfg, func(params *Params) {
		params.Publisher = &stubPublisher{err: errors.New("broker unreachable")}
	})
	err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish")
	// The export itself still happened before the publish stage.
	assert.FileExists(t, cfg.ProcessedFile)
}
