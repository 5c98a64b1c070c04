package watsonx

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/federalrisk/county-risk-etl/internal/domain"
)

// minContextPoints is the fixed context length of the granite TTM 512-96
// models. Shorter county histories are padded with AugmentSeries before the
// request goes out.
const minContextPoints = 512

// ModeTimeSeries tags forecasts produced by the time-series model.
const ModeTimeSeries = "timeseries"

// TimeSeriesForecaster implements domain.Forecaster against the watsonx.ai
// time-series forecast endpoint.
type TimeSeriesForecaster struct {
	client *Client
}

// NewTimeSeriesForecaster wraps a shared client.
func NewTimeSeriesForecaster(c *Client) *TimeSeriesForecaster {
	return &TimeSeriesForecaster{client: c}
}

var _ domain.Forecaster = (*TimeSeriesForecaster)(nil)

type tsRequest struct {
	ModelID    string       `json:"model_id"`
	ProjectID  string       `json:"project_id"`
	Schema     tsSchema     `json:"schema"`
	Parameters tsParameters `json:"parameters"`
	Data       tsData       `json:"data"`
}

type tsSchema struct {
	TimestampColumn string   `json:"timestamp_column"`
	TargetColumns   []string `json:"target_columns"`
	Freq            string   `json:"freq"`
}

type tsParameters struct {
	PredictionLength int `json:"prediction_length"`
}

type tsData struct {
	Date      []string  `json:"date"`
	RiskIndex []float64 `json:"risk_index"`
}

type tsResponse struct {
	Results []map[string]json.RawMessage `json:"results"`
}

// ForecastSeries pads the county's history to the model's context length,
// requests a multi-month horizon, and returns the last horizon value.
func (f *TimeSeriesForecaster) ForecastSeries(ctx context.Context, key domain.JoinKey, series domain.Series) (domain.Forecast, error) {
	prepared := domain.AugmentSeries(series, minContextPoints)
	if prepared.Len() < minContextPoints {
		return domain.Forecast{}, fmt.Errorf("series for %s too sparse to forecast", key)
	}

	req := tsRequest{
		ModelID:   f.client.cfg.TSModelID,
		ProjectID: f.client.cfg.ProjectID,
		Schema: tsSchema{
			TimestampColumn: "date",
			TargetColumns:   []string{"risk_index"},
			Freq:            "1M",
		},
		Parameters: tsParameters{PredictionLength: f.client.cfg.Horizon},
		Data: tsData{
			Date:      make([]string, 0, prepared.Len()),
			RiskIndex: make([]float64, 0, prepared.Len()),
		},
	}
	for _, p := range prepared.Points {
		req.Data.Date = append(req.Data.Date, p.Date.Format("2006-01-02"))
		req.Data.RiskIndex = append(req.Data.RiskIndex, p.Value)
	}

	var resp tsResponse
	if err := f.client.postJSON(ctx, "/ml/v1/time_series/forecast", req, &resp); err != nil {
		return domain.Forecast{}, fmt.Errorf("time series forecast for %s: %w", key, err)
	}

	value, err := extractForecast(resp)
	if err != nil {
		return domain.Forecast{}, fmt.Errorf("time series forecast for %s: %w", key, err)
	}
	return domain.Forecast{Value: value, Mode: ModeTimeSeries}, nil
}

// extractForecast pulls the final predicted risk_index from the response.
// When the model renames the target column, the first non-timestamp column
// (by name order) is used instead.
func extractForecast(resp tsResponse) (float64, error) {
	if len(resp.Results) == 0 {
		return 0, fmt.Errorf("empty forecast results")
	}
	columns := resp.Results[0]

	if raw, ok := columns["risk_index"]; ok {
		return lastValue(raw)
	}

	names := make([]string, 0, len(columns))
	for name := range columns {
		if name == "date" || name == "timestamp" {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if v, err := lastValue(columns[name]); err == nil {
			return v, nil
		}
	}
	return 0, fmt.Errorf("no forecast column in results")
}

func lastValue(raw json.RawMessage) (float64, error) {
	var values []float64
	if err := json.Unmarshal(raw, &values); err != nil {
		return 0, fmt.Errorf("decode forecast column: %w", err)
	}
	if len(values) == 0 {
		return 0, fmt.Errorf("empty forecast column")
	}
	return values[len(values)-1], nil
}
