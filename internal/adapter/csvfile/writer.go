package csvfile

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/federalrisk/county-risk-etl/internal/domain"
)

// exportHeader is the processed-output contract. Downstream map tooling
// reads lat, lon, and risk_score by name; renaming any of the three is a
// breaking change.
var exportHeader = []string{"region", "county", "state", "lat", "lon", "risk_score"}

// WriteRiskRecords replaces the processed CSV at path with the given records.
// The file is written to a temp sibling, synced, and renamed into place, so
// readers never observe a partial export.
func WriteRiskRecords(path string, records []domain.RiskRecord) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := csv.NewWriter(tmp)
	if err = w.Write(exportHeader); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, rec := range records {
		row := []string{
			rec.Region,
			rec.County,
			rec.State,
			formatFloat(rec.Lat),
			formatFloat(rec.Lon),
			formatFloat(rec.RiskScore),
		}
		if err = w.Write(row); err != nil {
			return fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err = w.Error(); err != nil {
		return fmt.Errorf("flush export: %w", err)
	}

	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync export: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close export: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace export: %w", err)
	}
	return nil
}

// ReadRiskRecords parses a processed CSV back into records. It enforces the
// export contract: lat, lon, and risk_score columns must be present and every
// value in them must parse as a float.
func ReadRiskRecords(path string) ([]domain.RiskRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open processed file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: empty file, expected a header row", path)
	}

	cols := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		cols[strings.TrimSpace(strings.ToLower(name))] = i
	}
	for _, required := range []string{"lat", "lon", "risk_score"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("%s: missing required column %q", path, required)
		}
	}

	records := make([]domain.RiskRecord, 0, len(rows)-1)
	for i, row := range rows[1:] {
		rec := domain.RiskRecord{
			Region: cell(row, cols, "region"),
			County: cell(row, cols, "county"),
			State:  cell(row, cols, "state"),
		}
		if rec.Lat, err = parseCell(row, cols, "lat"); err != nil {
			return nil, &domain.SchemaError{File: path, Row: i + 2, Field: "lat", Reason: err.Error()}
		}
		if rec.Lon, err = parseCell(row, cols, "lon"); err != nil {
			return nil, &domain.SchemaError{File: path, Row: i + 2, Field: "lon", Reason: err.Error()}
		}
		if rec.RiskScore, err = parseCell(row, cols, "risk_score"); err != nil {
			return nil, &domain.SchemaError{File: path, Row: i + 2, Field: "risk_score", Reason: err.Error()}
		}
		records = append(records, rec)
	}
	return records, nil
}

// WriteText atomically replaces a small text artifact, such as the generated
// impact summary, using the same temp-and-rename scheme as the CSV export.
func WriteText(path, content string) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.WriteString(content); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func parseCell(row []string, cols map[string]int, name string) (float64, error) {
	i := cols[name]
	if i >= len(row) {
		return 0, fmt.Errorf("row has no %s value", name)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", row[i])
	}
	return v, nil
}
