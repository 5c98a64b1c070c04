package domain

import (
	"math"
	"sort"
)

// PopulationEstimateMultiplier approximates county population from federal
// employment when no census figure is available.
const PopulationEstimateMultiplier = 50

// Fixed risk index weights. These are configuration, not learned values.
const (
	weightEmploymentRatio = 0.4
	weightUnemployment    = 0.3
	weightSNAPRate        = 0.2
	weightCostIndex       = 0.1
)

// DeriveRiskIndex fills missing metrics with documented defaults and
// computes the composite risk index for every merged record. Defaults:
// federal employment and SNAP households fall back to 0, unemployment rate
// and cost index to the dataset median. Cost is min-max normalized across
// the whole run, so the result depends only on the input set and is fully
// deterministic.
func DeriveRiskIndex(records []MergedRecord) []MergedRecord {
	if len(records) == 0 {
		return records
	}

	out := make([]MergedRecord, len(records))
	copy(out, records)

	unempMedian := medianOf(out, func(m MergedRecord) float64 { return m.UnemploymentRate })
	costMedian := medianOf(out, func(m MergedRecord) float64 { return m.CostIndex })

	for i := range out {
		out[i].FederalEmployment = orDefault(out[i].FederalEmployment, 0)
		out[i].SNAPHouseholds = orDefault(out[i].SNAPHouseholds, 0)
		out[i].UnemploymentRate = orDefault(out[i].UnemploymentRate, unempMedian)
		out[i].CostIndex = orDefault(out[i].CostIndex, costMedian)
		out[i].Population = out[i].FederalEmployment * PopulationEstimateMultiplier
	}

	costMin, costMax := math.Inf(1), math.Inf(-1)
	for i := range out {
		costMin = math.Min(costMin, out[i].CostIndex)
		costMax = math.Max(costMax, out[i].CostIndex)
	}
	costRange := costMax - costMin

	for i := range out {
		employmentRatio := finiteOrZero(out[i].FederalEmployment / (out[i].Population + 1))
		snapRate := finiteOrZero(out[i].SNAPHouseholds / (out[i].Population + 1))
		unemploymentNorm := finiteOrZero(out[i].UnemploymentRate / 100)

		var costNorm float64
		if costRange > 0 {
			costNorm = finiteOrZero((out[i].CostIndex - costMin) / costRange)
		}

		out[i].RiskIndex = finiteOrZero(
			weightEmploymentRatio*employmentRatio +
				weightUnemployment*unemploymentNorm +
				weightSNAPRate*snapRate +
				weightCostIndex*costNorm,
		)
	}
	return out
}

// orDefault replaces NaN with the fallback value.
func orDefault(v, fallback float64) float64 {
	if math.IsNaN(v) {
		return fallback
	}
	return v
}

func finiteOrZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// medianOf computes the median of a metric over records where it is present.
// Returns 0 when no record carries the metric.
func medianOf(records []MergedRecord, metric func(MergedRecord) float64) float64 {
	values := make([]float64, 0, len(records))
	for _, r := range records {
		if v := metric(r); !math.IsNaN(v) {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return 0
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid]
	}
	return (values[mid-1] + values[mid]) / 2
}
