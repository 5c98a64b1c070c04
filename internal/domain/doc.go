// Package domain models county-level socioeconomic data and the derived
// federal-shutdown risk index.
//
// # Data Sources
//
// Four county-level CSV files feed one pipeline run. Each comes from a
// different publisher and none of them agree on column naming, county
// spelling, or text encoding:
//
//	federalEmploymentByCounty.csv  wide monthly layout: one row per county
//	                               and year with "January Employment",
//	                               "February Employment", ... columns.
//	unemploymentByCounty.csv       monthly series keyed by a "Period" column
//	                               ("24-Jul", "Jul-2024", "2024-07"); the
//	                               state arrives as a 2-digit FIPS code and
//	                               the rate column is sometimes printed as
//	                               "Unemploy-ment Rate (%)".
//	snapParticipationByCounty.csv  static per-county SNAP household counts.
//	costOfLivingByCounty.csv       static per-county total cost of living.
//
// # Normalization Conventions
//
// Header matching drops case and every non-alphanumeric character, so
// "Unemploy-ment Rate (%)" and "unemployment_rate" resolve to the same
// canonical column. County names lose a trailing "County" word and a
// trailing ", XX" state suffix and are title-cased. States normalize to
// USPS codes, from either a full name ("Illinois") or a FIPS prefix ("17").
// The join key is the lowercased, trimmed (county, state) pair; it must be
// unique within a source file.
//
// Numeric fields may carry thousands separators ("1,234") and the sentinels
// "", "nan", "none", "null" for missing values. Missing values survive as
// NaN until [DeriveRiskIndex] fills them with documented defaults.
//
// # Risk Index
//
// The composite index uses fixed weights over normalized features:
//
//	population        = federal_employment * 50   (estimate)
//	employment_ratio  = federal_employment / (population + 1)
//	snap_rate         = snap_households / (population + 1)
//	unemployment_norm = unemployment_rate / 100
//	cost_norm         = min-max normalized cost index over the run's data
//	risk_index        = 0.4*employment_ratio + 0.3*unemployment_norm
//	                  + 0.2*snap_rate + 0.1*cost_norm
//
// The derivation is deterministic: identical inputs always produce identical
// indices. Non-finite intermediates clamp to zero.
//
// # Forecasting
//
// The per-county risk_index series optionally flows through an external
// time-series model (see [Forecaster]). The exported risk_score is the
// forecast when one is available, floored at the most recent actual value so
// a low forecast never understates current risk. The forecast stage is
// strictly optional: [ForecastOutcome] is a sum type (forecast | no
// forecast) and the no-forecast branch still yields a complete export.
package domain
