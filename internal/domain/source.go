package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
)

// SourceKind selects how a source's rows reshape into canonical records.
type SourceKind string

const (
	// KindMonthlyWide unpivots one row per county/year with per-month value
	// columns into one record per month.
	KindMonthlyWide SourceKind = "monthly_wide"
	// KindPeriod reads one record per row, dated by a period column.
	KindPeriod SourceKind = "period"
	// KindStatic reads one undated record per row.
	KindStatic SourceKind = "static"
)

// Column roles a source mapping can assign. Keys of SourceSpec.Columns are
// normalized headers (see NormalizeHeader); values are these roles.
const (
	RoleCounty    = "county"
	RoleState     = "state"
	RoleStateFIPS = "state_fips"
	RoleYear      = "year"
	RolePeriod    = "period"
	RoleValue     = "value"
)

// MonthRole names the value column for one month of a monthly-wide source.
func MonthRole(m time.Month) string {
	return fmt.Sprintf("month:%02d", int(m))
}

// SourceSpec describes one input file: where it lives, how its rows reshape,
// and which of its columns map to which canonical roles. Columns absent from
// the mapping are dropped, not errored.
type SourceSpec struct {
	Name    string
	File    string
	Kind    SourceKind
	Metric  string // canonical metric carried by RoleValue columns
	Columns map[string]string
}

// Normalize converts a raw table into canonical records using the source's
// column mapping. Rows missing their join key and duplicate join keys are
// schema errors; all of a file's schema errors are collected and returned
// together so one run surfaces every bad row. Rows with unparseable dates
// are dropped and counted in Table.Dropped.
func Normalize(raw RawTable, spec SourceSpec) (Table, error) {
	roles := indexRoles(raw.Header, spec.Columns)
	table := Table{Source: spec.Name, Path: raw.Path}

	var errs *multierror.Error
	seen := make(map[string]int)

	for i, row := range raw.Rows {
		rowNum := i + 1

		county := NormalizeCountyName(roles.cell(row, RoleCounty))
		state := NormalizeStateName(roles.cell(row, RoleState))
		if state == "" {
			state = StateFromFIPS(roles.cell(row, RoleStateFIPS))
		}

		if county == "" {
			errs = multierror.Append(errs, &SchemaError{
				File: raw.Path, Row: rowNum, Field: "county", Reason: "missing join key",
			})
			continue
		}
		if state == "" {
			errs = multierror.Append(errs, &SchemaError{
				File: raw.Path, Row: rowNum, Field: "state", Reason: "missing join key",
			})
			continue
		}

		key := NewJoinKey(county, state)

		switch spec.Kind {
		case KindStatic:
			if prev, dup := seen[key.String()]; dup {
				errs = multierror.Append(errs, &SchemaError{
					File: raw.Path, Row: rowNum, Field: "county",
					Reason: fmt.Sprintf("duplicate join key %q (first seen at row %d)", key, prev),
				})
				continue
			}
			seen[key.String()] = rowNum

			value, _ := CleanNumeric(roles.cell(row, RoleValue))
			table.Records = append(table.Records, CanonicalRecord{
				Key: key, County: county, State: state,
				Values: map[string]float64{spec.Metric: value},
			})

		case KindPeriod:
			date, ok := ParsePeriod(roles.cell(row, RolePeriod))
			if !ok {
				table.Dropped++
				continue
			}
			dk := key.String() + "|" + date.Format("2006-01")
			if prev, dup := seen[dk]; dup {
				errs = multierror.Append(errs, &SchemaError{
					File: raw.Path, Row: rowNum, Field: "period",
					Reason: fmt.Sprintf("duplicate join key %q for period (first seen at row %d)", key, prev),
				})
				continue
			}
			seen[dk] = rowNum

			value, _ := CleanNumeric(roles.cell(row, RoleValue))
			table.Records = append(table.Records, CanonicalRecord{
				Key: key, County: county, State: state, Date: date,
				Values: map[string]float64{spec.Metric: value},
			})

		case KindMonthlyWide:
			year, ok := parseYear(roles.cell(row, RoleYear))
			if !ok {
				table.Dropped++
				continue
			}
			for m := time.January; m <= time.December; m++ {
				idx, mapped := roles.index[MonthRole(m)]
				if !mapped || idx >= len(row) {
					continue
				}
				value, _ := CleanNumeric(row[idx])
				date := monthStart(year, m)
				dk := key.String() + "|" + date.Format("2006-01")
				if prev, dup := seen[dk]; dup {
					errs = multierror.Append(errs, &SchemaError{
						File: raw.Path, Row: rowNum, Field: "county",
						Reason: fmt.Sprintf("duplicate join key %q for %s (first seen at row %d)", key, date.Format("2006-01"), prev),
					})
					continue
				}
				seen[dk] = rowNum
				table.Records = append(table.Records, CanonicalRecord{
					Key: key, County: county, State: state, Date: date,
					Values: map[string]float64{spec.Metric: value},
				})
			}

		default:
			return table, fmt.Errorf("source %s: unknown kind %q", spec.Name, spec.Kind)
		}
	}

	if err := errs.ErrorOrNil(); err != nil {
		return table, fmt.Errorf("normalize %s: %w", spec.Name, err)
	}
	return table, nil
}

// roleIndex maps column roles to positions in the raw header.
type roleIndex struct {
	index map[string]int
}

func indexRoles(header []string, columns map[string]string) roleIndex {
	idx := make(map[string]int, len(columns))
	for i, h := range header {
		role, ok := columns[NormalizeHeader(h)]
		if !ok {
			continue
		}
		// First match wins when two headers normalize identically.
		if _, taken := idx[role]; !taken {
			idx[role] = i
		}
	}
	return roleIndex{index: idx}
}

func (r roleIndex) cell(row []string, role string) string {
	i, ok := r.index[role]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseYear(cell string) (int, bool) {
	v, err := strconv.Atoi(strings.TrimSpace(cell))
	if err != nil || v < 1900 || v > 2200 {
		return 0, false
	}
	return v, true
}
