package domain

import (
	"log/slog"
	"math"
	"sort"
)

// Merge joins the canonical tables into one time series per county. The
// unemployment table is the spine: federal employment joins on (key, date),
// SNAP and cost of living join on key alone. The unmatched-row policy is a
// left join that drops spine rows whose key appears in no other source
// (logged and counted); partial matches survive with NaN placeholders that
// DeriveRiskIndex later fills. Fully disjoint key sets therefore produce
// zero merged records and a warning, never a crash.
func Merge(spine, federal, snap, cost Table, logger *slog.Logger) []MergedRecord {
	federalByKeyDate := make(map[string]float64, len(federal.Records))
	federalKeys := make(map[JoinKey]bool)
	for _, rec := range federal.Records {
		federalByKeyDate[rec.Key.String()+"|"+rec.Date.Format("2006-01")] = rec.Values[MetricFederalEmployment]
		federalKeys[rec.Key] = true
	}
	snapByKey := indexStatic(snap, MetricSNAPHouseholds)
	costByKey := indexStatic(cost, MetricCostIndex)

	merged := make([]MergedRecord, 0, len(spine.Records))
	var unmatched int

	for _, rec := range spine.Records {
		_, inSNAP := snapByKey[rec.Key]
		_, inCost := costByKey[rec.Key]
		if !federalKeys[rec.Key] && !inSNAP && !inCost {
			unmatched++
			continue
		}

		m := MergedRecord{
			Key:    rec.Key,
			County: rec.County,
			State:  rec.State,
			Date:   rec.Date,

			FederalEmployment: math.NaN(),
			SNAPHouseholds:    math.NaN(),
			UnemploymentRate:  rec.Values[MetricUnemploymentRate],
			CostIndex:         math.NaN(),
		}
		if v, ok := federalByKeyDate[rec.Key.String()+"|"+rec.Date.Format("2006-01")]; ok {
			m.FederalEmployment = v
		}
		if v, ok := snapByKey[rec.Key]; ok {
			m.SNAPHouseholds = v
		}
		if v, ok := costByKey[rec.Key]; ok {
			m.CostIndex = v
		}
		merged = append(merged, m)
	}

	if unmatched > 0 {
		logger.Warn("dropped spine rows matching no other source",
			"source", spine.Source, "dropped", unmatched)
	}
	if len(merged) == 0 {
		logger.Warn("merge produced no records; sources share no join keys",
			"spine", spine.Source)
	}

	sort.Slice(merged, func(i, j int) bool {
		if merged[i].Key != merged[j].Key {
			if merged[i].Key.County != merged[j].Key.County {
				return merged[i].Key.County < merged[j].Key.County
			}
			return merged[i].Key.State < merged[j].Key.State
		}
		return merged[i].Date.Before(merged[j].Date)
	})
	return merged
}

func indexStatic(table Table, metric string) map[JoinKey]float64 {
	idx := make(map[JoinKey]float64, len(table.Records))
	for _, rec := range table.Records {
		idx[rec.Key] = rec.Values[metric]
	}
	return idx
}
