// Command genmock generates mock county source CSVs for local pipeline runs
// and demos. The files reproduce the upstream publishers' quirks on purpose:
// inconsistent county naming, FIPS-coded states, comma-grouped numbers, a
// scattering of missing values, and one file in windows-1252.
//
// Usage:
//
//	go run ./cmd/genmock -out data/datasets -months 24 -seed 42
package main

import (
	"bytes"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/text/encoding/charmap"
)

type mockCounty struct {
	name     string
	state    string // USPS code
	stateFul string // full name, for sources that spell it out
	fips     string // 2-digit state FIPS
	baseRate float64
}

var counties = []mockCounty{
	{"Cook", "IL", "Illinois", "17", 6.1},
	{"Harris", "TX", "Texas", "48", 5.2},
	{"Maricopa", "AZ", "Arizona", "04", 4.4},
	{"Doña Ana", "NM", "New Mexico", "35", 7.3},
	{"Ada", "ID", "Idaho", "16", 3.2},
	{"Fulton", "GA", "Georgia", "13", 5.8},
	{"King", "WA", "Washington", "53", 4.0},
	{"Richland", "SC", "South Carolina", "45", 6.7},
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "data/datasets", "output directory for mock source CSVs")
	months := flag.Int("months", 24, "months of history ending December 2025")
	seed := flag.Int64("seed", 42, "random seed for reproducible values")
	flag.Parse()

	if *months < 1 {
		return fmt.Errorf("-months must be at least 1")
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	rng := rand.New(rand.NewSource(*seed))
	end := time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(0, -(*months - 1), 0)

	writers := []struct {
		file string
		gen  func(*rand.Rand, time.Time, time.Time) ([]byte, int)
	}{
		{"unemploymentByCounty.csv", genUnemployment},
		{"federalEmploymentByCounty.csv", genFederalEmployment},
		{"snapParticipationByCounty.csv", genSNAP},
		{"costOfLivingByCounty.csv", genCostOfLiving},
	}

	for _, w := range writers {
		data, rows := w.gen(rng, start, end)
		path := filepath.Join(*out, w.file)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", w.file, err)
		}
		log.Printf("%s: %d rows", w.file, rows)
	}

	log.Printf("generated %d counties x %d months under %s", len(counties), *months, *out)
	return nil
}

// messyName returns the county name the way the publisher prints it, cycling
// through the casing and suffix variants seen in real files.
func messyName(c mockCounty, i int) string {
	switch i % 3 {
	case 0:
		return strings.ToLower(c.name) + " county"
	case 1:
		return c.name + " County"
	default:
		return strings.ToUpper(c.name)
	}
}

func genUnemployment(rng *rand.Rand, start, end time.Time) ([]byte, int) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"County", "State FIPS Code", "Period", "Unemployment Rate (%)"})

	rows := 0
	for i, c := range counties {
		rate := c.baseRate
		for d := start; !d.After(end); d = d.AddDate(0, 1, 0) {
			rate += rng.Float64()*0.6 - 0.3
			if rate < 1 {
				rate = 1
			}
			value := fmt.Sprintf("%.1f", rate)
			// The publisher occasionally leaves a cell blank.
			if rng.Intn(40) == 0 {
				value = ""
			}
			w.Write([]string{messyName(c, i), c.fips, d.Format("06-Jan"), value})
			rows++
		}
	}
	w.Flush()
	return buf.Bytes(), rows
}

func genFederalEmployment(rng *rand.Rand, start, end time.Time) ([]byte, int) {
	header := []string{"County", "State", "Year"}
	for m := time.January; m <= time.December; m++ {
		header = append(header, m.String()+" Employment")
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write(header)

	rows := 0
	for _, c := range counties {
		base := 200 + rng.Intn(5000)
		for year := start.Year(); year <= end.Year(); year++ {
			row := []string{c.name, c.state, fmt.Sprintf("%d", year)}
			for m := time.January; m <= time.December; m++ {
				v := base + rng.Intn(200) - 100
				// Thousands get comma-grouped, exactly as published.
				row = append(row, groupThousands(v))
			}
			w.Write(row)
			rows++
		}
	}
	w.Flush()
	return buf.Bytes(), rows
}

func genSNAP(rng *rand.Rand, _, _ time.Time) ([]byte, int) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"County Name", "State Name", "SNAP Households"})

	for i, c := range counties {
		w.Write([]string{messyName(c, i+1), c.stateFul, groupThousands(1000 + rng.Intn(60000))})
	}
	w.Flush()
	return buf.Bytes(), len(counties)
}

// genCostOfLiving writes windows-1252 bytes, matching the one publisher whose
// export tooling still does that. Accented county names exercise the
// pipeline's encoding fallback.
func genCostOfLiving(rng *rand.Rand, _, _ time.Time) ([]byte, int) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Write([]string{"County", "State", "Total Cost"})

	for _, c := range counties {
		w.Write([]string{c.name, c.state, groupThousands(45000 + rng.Intn(50000))})
	}
	w.Flush()

	encoded, err := charmap.Windows1252.NewEncoder().Bytes(buf.Bytes())
	if err != nil {
		// Every generated rune fits windows-1252; fall back to UTF-8 if not.
		return buf.Bytes(), len(counties)
	}
	return encoded, len(counties)
}

func groupThousands(v int) string {
	s := fmt.Sprintf("%d", v)
	if len(s) <= 3 {
		return s
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	return s + "," + strings.Join(parts, ",")
}
