// Command validate checks a processed risk export against the output
// contract consumed by downstream map tooling: the lat, lon, and risk_score
// columns must be present and numeric, coordinates must be plausible, and
// county keys must not repeat.
//
// Usage:
//
//	go run ./cmd/validate -processed data/processed/regional_risk.csv
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/federalrisk/county-risk-etl/internal/adapter/csvfile"
	"github.com/federalrisk/county-risk-etl/internal/domain"
)

// phase tracks pass/fail for one validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	processed := flag.String("processed", "", "path to the processed risk CSV")
	flag.Parse()

	if *processed == "" {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(*processed))
}

func run(path string) int {
	fmt.Println("=== Risk Export Validation ===")
	fmt.Println()

	records, err := csvfile.ReadRiskRecords(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateScores(records),
		validateCoordinates(records),
		validateIdentity(records),
	}

	allPassed := true
	for _, p := range phases {
		status := "PASS"
		if !p.passed() {
			status = fmt.Sprintf("FAIL (%d errors)", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-40s %s\n", p.name, status)
	}

	fmt.Printf("\nRecords: %d\n", len(records))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

func validateScores(records []domain.RiskRecord) *phase {
	p := &phase{name: "Phase 1: Risk scores"}
	for i, rec := range records {
		if math.IsNaN(rec.RiskScore) || math.IsInf(rec.RiskScore, 0) {
			p.errorf("record %d (%s): risk_score is not finite", i, rec.Region)
		}
		if rec.RiskScore < 0 {
			p.errorf("record %d (%s): risk_score %g is negative", i, rec.Region, rec.RiskScore)
		}
	}
	return p
}

func validateCoordinates(records []domain.RiskRecord) *phase {
	p := &phase{name: "Phase 2: Coordinates"}
	for i, rec := range records {
		if rec.Lat < -90 || rec.Lat > 90 {
			p.errorf("record %d (%s): lat %g out of range", i, rec.Region, rec.Lat)
		}
		if rec.Lon < -180 || rec.Lon > 180 {
			p.errorf("record %d (%s): lon %g out of range", i, rec.Region, rec.Lon)
		}
		if rec.Lat == 0 && rec.Lon == 0 {
			p.errorf("record %d (%s): coordinates are both zero", i, rec.Region)
		}
	}
	return p
}

func validateIdentity(records []domain.RiskRecord) *phase {
	p := &phase{name: "Phase 3: County identity"}
	seen := make(map[string]int)
	for i, rec := range records {
		if rec.County == "" || rec.State == "" {
			p.errorf("record %d: county or state is empty", i)
			continue
		}
		if len(rec.State) != 2 {
			p.errorf("record %d (%s): state %q is not a USPS code", i, rec.Region, rec.State)
		}
		if want := rec.County + ", " + rec.State; rec.Region != want {
			p.errorf("record %d: region %q does not match %q", i, rec.Region, want)
		}

		key := strings.ToLower(rec.County) + "|" + strings.ToLower(rec.State)
		if prev, dup := seen[key]; dup {
			p.errorf("record %d: duplicate county %s (first at record %d)", i, rec.Region, prev)
			continue
		}
		seen[key] = i
	}
	return p
}
