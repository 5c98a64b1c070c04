package domain

import (
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func month(y int, m time.Month) time.Time {
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}

func spineRecord(county, state string, date time.Time, rate float64) CanonicalRecord {
	return CanonicalRecord{
		Key: NewJoinKey(county, state), County: county, State: state, Date: date,
		Values: map[string]float64{MetricUnemploymentRate: rate},
	}
}

func staticRecord(county, state, metric string, v float64) CanonicalRecord {
	return CanonicalRecord{
		Key: NewJoinKey(county, state), County: county, State: state,
		Values: map[string]float64{metric: v},
	}
}

func TestMergeJoinsAllSources(t *testing.T) {
	jan, feb := month(2024, time.January), month(2024, time.February)

	spine := Table{Source: "unemployment", Records: []CanonicalRecord{
		spineRecord("Cook", "IL", jan, 5.2),
		spineRecord("Cook", "IL", feb, 5.6),
	}}
	federal := Table{Records: []CanonicalRecord{
		{Key: NewJoinKey("Cook", "IL"), County: "Cook", State: "IL", Date: jan,
			Values: map[string]float64{MetricFederalEmployment: 1200}},
	}}
	snap := Table{Records: []CanonicalRecord{staticRecord("Cook", "IL", MetricSNAPHouseholds, 50000)}}
	cost := Table{Records: []CanonicalRecord{staticRecord("Cook", "IL", MetricCostIndex, 85000)}}

	merged := Merge(spine, federal, snap, cost, discardLogger())
	require.Len(t, merged, 2)

	janRec := merged[0]
	assert.Equal(t, "Cook", janRec.County)
	assert.True(t, janRec.Date.Equal(jan))
	assert.InDelta(t, 5.2, janRec.UnemploymentRate, 1e-9)
	assert.InDelta(t, 1200, janRec.FederalEmployment, 1e-9)
	assert.InDelta(t, 50000, janRec.SNAPHouseholds, 1e-9)
	assert.InDelta(t, 85000, janRec.CostIndex, 1e-9)

	// February has no federal observation; the gap stays NaN for the
	// derive stage to fill.
	febRec := merged[1]
	assert.True(t, febRec.Date.Equal(feb))
	assert.True(t, math.IsNaN(febRec.FederalEmployment))
	assert.InDelta(t, 50000, febRec.SNAPHouseholds, 1e-9)
}

func TestMergeKeysNormalizeAcrossSources(t *testing.T) {
	jan := month(2024, time.January)

	// The spine spells the county one way, the other sources another;
	// the folded join key still matches.
	spine := Table{Records: []CanonicalRecord{spineRecord("Cook", "IL", jan, 5.2)}}
	snap := Table{Records: []CanonicalRecord{staticRecord("Cook", "IL", MetricSNAPHouseholds, 1)}}

	merged := Merge(spine, Table{}, snap, Table{}, discardLogger())
	require.Len(t, merged, 1)
	assert.InDelta(t, 1, merged[0].SNAPHouseholds, 1e-9)
	assert.True(t, math.IsNaN(merged[0].CostIndex))
}

func TestMergeDropsSpineRowsMatchingNothing(t *testing.T) {
	jan := month(2024, time.January)

	spine := Table{Source: "unemployment", Records: []CanonicalRecord{
		spineRecord("Cook", "IL", jan, 5.2),
		spineRecord("Nowhere", "WY", jan, 9.9),
	}}
	snap := Table{Records: []CanonicalRecord{staticRecord("Cook", "IL", MetricSNAPHouseholds, 1)}}

	merged := Merge(spine, Table{}, snap, Table{}, discardLogger())
	require.Len(t, merged, 1)
	assert.Equal(t, "Cook", merged[0].County)
}

func TestMergeDisjointKeysYieldsNoRecords(t *testing.T) {
	jan := month(2024, time.January)

	spine := Table{Source: "unemployment", Records: []CanonicalRecord{
		spineRecord("Nowhere", "WY", jan, 9.9),
	}}
	snap := Table{Records: []CanonicalRecord{staticRecord("Cook", "IL", MetricSNAPHouseholds, 1)}}

	merged := Merge(spine, Table{}, snap, Table{}, discardLogger())
	assert.Empty(t, merged)
}

func TestMergeDeterministicOrder(t *testing.T) {
	jan, feb := month(2024, time.January), month(2024, time.February)

	spine := Table{Records: []CanonicalRecord{
		spineRecord("Harris", "TX", jan, 4.0),
		spineRecord("Cook", "IL", feb, 5.6),
		spineRecord("Cook", "IL", jan, 5.2),
	}}
	snap := Table{Records: []CanonicalRecord{
		staticRecord("Cook", "IL", MetricSNAPHouseholds, 1),
		staticRecord("Harris", "TX", MetricSNAPHouseholds, 2),
	}}

	merged := Merge(spine, Table{}, snap, Table{}, discardLogger())
	require.Len(t, merged, 3)
	assert.Equal(t, "Cook", merged[0].County)
	assert.True(t, merged[0].Date.Equal(jan))
	assert.True(t, merged[1].Date.Equal(feb))
	assert.Equal(t, "Harris", merged[2].County)
}
