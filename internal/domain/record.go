package domain

import (
	"context"
	"fmt"
	"time"
)

// Canonical metric names shared by all sources after normalization.
const (
	MetricFederalEmployment = "federal_employment"
	MetricUnemploymentRate  = "unemployment_rate"
	MetricSNAPHouseholds    = "snap_households"
	MetricCostIndex         = "cost_index"
)

// RawTable is one input file as read by the loader: untyped cells, headers
// exactly as they appear in the file.
type RawTable struct {
	Path   string
	Header []string
	Rows   [][]string
}

// JoinKey aligns records across sources. Both fields are lowercased and
// trimmed so formatting differences between publishers cannot cause
// spurious mismatches.
type JoinKey struct {
	County string
	State  string
}

// NewJoinKey builds the canonical join key for a county/state pair.
func NewJoinKey(county, state string) JoinKey {
	return JoinKey{
		County: foldKeyPart(county),
		State:  foldKeyPart(state),
	}
}

func (k JoinKey) String() string {
	return k.County + "|" + k.State
}

// IsZero reports whether either half of the key is missing.
func (k JoinKey) IsZero() bool {
	return k.County == "" || k.State == ""
}

// CanonicalRecord is one normalized observation from one source: a join key,
// display names, an optional observation date (zero for static sources), and
// the canonical metrics the source carries. NaN marks a value that was
// present but unparseable.
type CanonicalRecord struct {
	Key    JoinKey
	County string // display form, title-cased
	State  string // USPS code
	Date   time.Time
	Values map[string]float64
}

// Table is the normalized form of one source file. Dropped counts rows
// discarded for unparseable dates or years; they are logged, not fatal.
type Table struct {
	Source  string
	Path    string
	Records []CanonicalRecord
	Dropped int
}

// MergedRecord is one (county, state, date) observation after joining all
// sources. Missing metrics hold NaN until DeriveRiskIndex fills defaults.
type MergedRecord struct {
	Key    JoinKey
	County string
	State  string
	Date   time.Time

	FederalEmployment float64
	SNAPHouseholds    float64
	UnemploymentRate  float64
	CostIndex         float64

	// Derived by DeriveRiskIndex.
	Population float64
	RiskIndex  float64
}

// RiskRecord is the exported per-county result consumed by the presentation
// layer. Lat, Lon and RiskScore are the fixed contract columns and are
// always populated.
type RiskRecord struct {
	Region       string    `json:"region"`
	County       string    `json:"county"`
	State        string    `json:"state"`
	Lat          float64   `json:"lat"`
	Lon          float64   `json:"lon"`
	RiskScore    float64   `json:"risk_score"`
	ForecastMode string    `json:"forecast_mode,omitempty"`
	GeneratedAt  time.Time `json:"generated_at"`
}

// NewRiskRecord assembles the exported record for one county, stamping it
// with the package clock.
func NewRiskRecord(county, state string, lat, lon float64, score float64, mode string) RiskRecord {
	return RiskRecord{
		Region:       fmt.Sprintf("%s, %s", county, state),
		County:       county,
		State:        state,
		Lat:          lat,
		Lon:          lon,
		RiskScore:    score,
		ForecastMode: mode,
		GeneratedAt:  clock.Now().UTC(),
	}
}

// Forecast is a successful external model prediction for one county.
type Forecast struct {
	Value float64
	Mode  string // "timeseries" or "textgen"
}

// ForecastOutcome is the result of the optional forecast stage: either a
// forecast or nothing. Keeping the two cases in one closed type means the
// exporter never sees a half-populated forecast.
type ForecastOutcome struct {
	forecast Forecast
	valid    bool
}

// ForecastOf wraps a successful forecast.
func ForecastOf(f Forecast) ForecastOutcome {
	return ForecastOutcome{forecast: f, valid: true}
}

// NoForecast is the outcome when forecasting is disabled or failed.
func NoForecast() ForecastOutcome {
	return ForecastOutcome{}
}

// Forecast returns the wrapped forecast and whether one exists.
func (o ForecastOutcome) Forecast() (Forecast, bool) {
	return o.forecast, o.valid
}

// FinalizeScore resolves the exported risk score from the latest actual
// index and the forecast outcome. A forecast never lowers the score below
// the most recent actual value. The returned mode is empty when no forecast
// contributed.
func FinalizeScore(latest float64, outcome ForecastOutcome) (float64, string) {
	f, ok := outcome.Forecast()
	if !ok {
		return latest, ""
	}
	if f.Value < latest {
		return latest, f.Mode
	}
	return f.Value, f.Mode
}

// Forecaster produces a risk forecast from a county's historical series.
// Implementations live at the adapter edge; failures degrade the run to a
// no-forecast export rather than aborting it.
type Forecaster interface {
	ForecastSeries(ctx context.Context, key JoinKey, series Series) (Forecast, error)
}
