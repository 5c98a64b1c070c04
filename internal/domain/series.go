package domain

import (
	"math"
	"sort"
	"time"
)

// SeriesPoint is one dated risk_index observation.
type SeriesPoint struct {
	Date  time.Time
	Value float64
}

// Series is a county's risk_index history, ordered by date.
type Series struct {
	Points []SeriesPoint
}

// Len returns the number of observations.
func (s Series) Len() int { return len(s.Points) }

// Latest returns the most recent value, or 0 for an empty series.
func (s Series) Latest() float64 {
	if len(s.Points) == 0 {
		return 0
	}
	return s.Points[len(s.Points)-1].Value
}

// CountySeries pairs a county's identity with its risk_index history.
type CountySeries struct {
	Key    JoinKey
	County string
	State  string
	Series Series
}

// BuildCountySeries groups derived records into one dated series per county,
// ordered by join key for deterministic iteration.
func BuildCountySeries(records []MergedRecord) []CountySeries {
	byKey := make(map[JoinKey]*CountySeries)
	for _, rec := range records {
		cs, ok := byKey[rec.Key]
		if !ok {
			cs = &CountySeries{Key: rec.Key, County: rec.County, State: rec.State}
			byKey[rec.Key] = cs
		}
		cs.Series.Points = append(cs.Series.Points, SeriesPoint{Date: rec.Date, Value: rec.RiskIndex})
	}

	out := make([]CountySeries, 0, len(byKey))
	for _, cs := range byKey {
		sort.Slice(cs.Series.Points, func(i, j int) bool {
			return cs.Series.Points[i].Date.Before(cs.Series.Points[j].Date)
		})
		out = append(out, *cs)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.County != out[j].Key.County {
			return out[i].Key.County < out[j].Key.County
		}
		return out[i].Key.State < out[j].Key.State
	})
	return out
}

// AugmentSeries stretches a short series onto a monthly grid of exactly
// minPoints observations ending at the latest known date. Known values keep
// their month, interior gaps interpolate linearly, and the edges extend the
// first and last known values. Time-series models with a fixed context
// length (the granite TTM family wants 512 points) need this padding; a
// series already long enough is truncated to its trailing minPoints.
func AugmentSeries(s Series, minPoints int) Series {
	n := len(s.Points)
	if n == 0 || minPoints <= 0 {
		return Series{}
	}
	if n >= minPoints {
		points := make([]SeriesPoint, minPoints)
		copy(points, s.Points[n-minPoints:])
		return Series{Points: points}
	}

	latest := s.Points[n-1].Date
	start := latest.AddDate(0, -(minPoints - 1), 0)

	known := make(map[string]float64, n)
	for _, p := range s.Points {
		known[p.Date.Format("2006-01")] = p.Value
	}

	points := make([]SeriesPoint, minPoints)
	for i := range points {
		d := start.AddDate(0, i, 0)
		v, ok := known[d.Format("2006-01")]
		if !ok {
			v = math.NaN()
		}
		points[i] = SeriesPoint{Date: d, Value: v}
	}
	interpolate(points)
	return Series{Points: points}
}

// interpolate fills NaN gaps in place: linear between known neighbors,
// edge extension outside them. A fully unknown series becomes all zeros.
func interpolate(points []SeriesPoint) {
	first, last := -1, -1
	for i, p := range points {
		if !math.IsNaN(p.Value) {
			if first == -1 {
				first = i
			}
			last = i
		}
	}
	if first == -1 {
		for i := range points {
			points[i].Value = 0
		}
		return
	}

	for i := 0; i < first; i++ {
		points[i].Value = points[first].Value
	}
	for i := last + 1; i < len(points); i++ {
		points[i].Value = points[last].Value
	}

	prev := first
	for i := first + 1; i <= last; i++ {
		if math.IsNaN(points[i].Value) {
			continue
		}
		if gap := i - prev; gap > 1 {
			step := (points[i].Value - points[prev].Value) / float64(gap)
			for j := prev + 1; j < i; j++ {
				points[j].Value = points[prev].Value + step*float64(j-prev)
			}
		}
		prev = i
	}
}
