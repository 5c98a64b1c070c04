// Package pipeline orchestrates one end-to-end run: load the source CSVs,
// normalize and merge them, derive the risk index, optionally forecast it,
// and export the per-county risk scores.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/federalrisk/county-risk-etl/internal/adapter/csvfile"
	"github.com/federalrisk/county-risk-etl/internal/config"
	"github.com/federalrisk/county-risk-etl/internal/domain"
	"github.com/federalrisk/county-risk-etl/internal/observability"
)

// Publisher pushes exported records to an optional downstream sink.
type Publisher interface {
	PublishBatch(ctx context.Context, records []domain.RiskRecord) error
}

// Summarizer produces the optional plain-English impact summary.
type Summarizer interface {
	GenerateSummary(ctx context.Context, records []domain.RiskRecord) (string, error)
}

// Params collects the pipeline's collaborators. Forecaster, Publisher, and
// Summarizer are optional; nil disables the corresponding stage.
type Params struct {
	Config     *config.Config
	Sources    []domain.SourceSpec
	Geocoder   domain.Geocoder
	Forecaster domain.Forecaster
	Publisher  Publisher
	Summarizer Summarizer
	Logger     *slog.Logger
	Metrics    *observability.Metrics
}

// Pipeline executes one batch run. It holds no mutable state between runs,
// so a scheduler may call Run repeatedly on the same instance.
type Pipeline struct {
	cfg        *config.Config
	sources    []domain.SourceSpec
	geocoder   domain.Geocoder
	forecaster domain.Forecaster
	publisher  Publisher
	summarizer Summarizer
	logger     *slog.Logger
	metrics    *observability.Metrics
}

// New creates a Pipeline from its collaborators.
func New(p Params) *Pipeline {
	return &Pipeline{
		cfg:        p.Config,
		sources:    p.Sources,
		geocoder:   p.Geocoder,
		forecaster: p.Forecaster,
		publisher:  p.Publisher,
		summarizer: p.Summarizer,
		logger:     p.Logger,
		metrics:    p.Metrics,
	}
}

// Run executes load, normalize, merge, derive, forecast, export, and the
// optional publish and summary stages. A stage failure aborts the run and
// leaves the previous export untouched; only the forecast stage degrades
// instead of failing.
func (p *Pipeline) Run(ctx context.Context) error {
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	runStart := time.Now()

	if p.forecaster != nil {
		p.metrics.ForecastEnabled.Set(1)
	} else {
		p.metrics.ForecastEnabled.Set(0)
	}

	tables, err := p.loadStage(ctx)
	if err != nil {
		return err
	}

	merged := p.mergeStage(tables)
	derived := p.deriveStage(merged)
	records := p.scoreStage(ctx, domain.BuildCountySeries(derived))

	if err := p.exportStage(records); err != nil {
		return err
	}
	if err := p.publishStage(ctx, records); err != nil {
		return err
	}
	if err := p.summaryStage(ctx, records); err != nil {
		return err
	}

	p.logger.Info("pipeline run complete",
		"counties", len(records),
		"duration", time.Since(runStart).Round(time.Millisecond))
	return nil
}

// loadStage reads and normalizes every configured source. Schema errors are
// fatal: a malformed source means the export would silently misrepresent
// whole counties.
func (p *Pipeline) loadStage(ctx context.Context) (map[string]domain.Table, error) {
	defer p.observeStage("load", time.Now())

	tables := make(map[string]domain.Table, len(p.sources))
	for _, spec := range p.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(p.cfg.DataDir, spec.File)
		raw, err := csvfile.ReadTable(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", spec.Name, err)
		}
		p.metrics.RowsLoaded.WithLabelValues(spec.Name).Add(float64(len(raw.Rows)))

		table, err := domain.Normalize(raw, spec)
		if err != nil {
			var merr *multierror.Error
			if errors.As(err, &merr) {
				p.metrics.SchemaErrors.WithLabelValues(spec.Name).Add(float64(len(merr.Errors)))
			}
			return nil, err
		}
		if table.Dropped > 0 {
			p.logger.Warn("dropped rows with unparseable dates",
				"source", spec.Name, "rows", table.Dropped)
		}
		p.logger.Info("source loaded",
			"source", spec.Name, "file", spec.File, "records", len(table.Records))
		tables[spec.Name] = table
	}
	return tables, nil
}

// mergeStage joins the normalized tables on (county, state), with the
// unemployment series as the spine.
func (p *Pipeline) mergeStage(tables map[string]domain.Table) []domain.MergedRecord {
	defer p.observeStage("merge", time.Now())

	merged := domain.Merge(
		tables[config.SourceUnemployment],
		tables[config.SourceFederalEmployment],
		tables[config.SourceSNAP],
		tables[config.SourceCostOfLiving],
		p.logger,
	)
	p.metrics.RecordsMerged.Add(float64(len(merged)))
	return merged
}

func (p *Pipeline) deriveStage(merged []domain.MergedRecord) []domain.MergedRecord {
	defer p.observeStage("derive", time.Now())
	return domain.DeriveRiskIndex(merged)
}

// scoreStage resolves each county's exported score: the forecast when one is
// available and not below the latest actual, the latest actual otherwise.
func (p *Pipeline) scoreStage(ctx context.Context, series []domain.CountySeries) []domain.RiskRecord {
	defer p.observeStage("forecast", time.Now())

	records := make([]domain.RiskRecord, 0, len(series))
	for _, cs := range series {
		outcome := p.forecastCounty(ctx, cs)
		score, mode := domain.FinalizeScore(cs.Series.Latest(), outcome)
		lat, lon := p.geocoder.Coordinates(cs.County, cs.State)
		records = append(records, domain.NewRiskRecord(cs.County, cs.State, lat, lon, score, mode))
	}
	return records
}

// forecastCounty calls the external model for one county. Any failure
// degrades that county to its latest actual value; a model outage must not
// block the export.
func (p *Pipeline) forecastCounty(ctx context.Context, cs domain.CountySeries) domain.ForecastOutcome {
	if p.forecaster == nil {
		return domain.NoForecast()
	}

	fctx, cancel := context.WithTimeout(ctx, p.cfg.ForecastTimeout)
	defer cancel()

	start := time.Now()
	forecast, err := p.forecaster.ForecastSeries(fctx, cs.Key, cs.Series)
	p.metrics.ForecastDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		p.logger.Warn("forecast failed, falling back to latest actual",
			"county", cs.County, "state", cs.State, "error", err)
		p.metrics.ForecastRequests.WithLabelValues(p.cfg.ForecastMode, "error").Inc()
		return domain.NoForecast()
	}
	p.metrics.ForecastRequests.WithLabelValues(forecast.Mode, "success").Inc()
	return domain.ForecastOf(forecast)
}

func (p *Pipeline) exportStage(records []domain.RiskRecord) error {
	defer p.observeStage("export", time.Now())

	if err := csvfile.WriteRiskRecords(p.cfg.ProcessedFile, records); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	p.metrics.RecordsExported.Add(float64(len(records)))
	p.logger.Info("export written", "file", p.cfg.ProcessedFile, "records", len(records))
	return nil
}

func (p *Pipeline) publishStage(ctx context.Context, records []domain.RiskRecord) error {
	if p.publisher == nil {
		return nil
	}
	defer p.observeStage("publish", time.Now())

	if err := p.publisher.PublishBatch(ctx, records); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	return nil
}

func (p *Pipeline) summaryStage(ctx context.Context, records []domain.RiskRecord) error {
	if p.summarizer == nil || !p.cfg.SummaryEnabled {
		return nil
	}
	defer p.observeStage("summary", time.Now())

	summary, err := p.summarizer.GenerateSummary(ctx, records)
	if err != nil {
		// The summary is decoration; the export already succeeded.
		p.logger.Warn("summary generation failed", "error", err)
		return nil
	}
	if err := csvfile.WriteText(p.cfg.SummaryFile, summary+"\n"); err != nil {
		return fmt.Errorf("write summary: %w", err)
	}
	p.logger.Info("summary written", "file", p.cfg.SummaryFile)
	return nil
}

func (p *Pipeline) observeStage(stage string, start time.Time) {
	p.metrics.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}
