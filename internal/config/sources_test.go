package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/federalrisk/county-risk-etl/internal/domain"
)

func TestDefaultSources(t *testing.T) {
	specs := DefaultSources()
	require.Len(t, specs, 4)

	byName := make(map[string]domain.SourceSpec, len(specs))
	for _, s := range specs {
		byName[s.Name] = s
	}

	unemp, ok := byName[SourceUnemployment]
	require.True(t, ok)
	assert.Equal(t, domain.KindPeriod, unemp.Kind)
	assert.Equal(t, "unemploymentByCounty.csv", unemp.File)
	assert.Equal(t, domain.RoleStateFIPS, unemp.Columns["statefipscode"])
	assert.Equal(t, domain.RoleValue, unemp.Columns["unemploymentrate"])

	federal, ok := byName[SourceFederalEmployment]
	require.True(t, ok)
	assert.Equal(t, domain.KindMonthlyWide, federal.Kind)
	assert.Equal(t, "month:01", federal.Columns["januaryemployment"])
	assert.Equal(t, "month:12", federal.Columns["decemberemployment"])

	assert.Equal(t, domain.KindStatic, byName[SourceSNAP].Kind)
	assert.Equal(t, domain.KindStatic, byName[SourceCostOfLiving].Kind)
}

func writeManifest(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const validManifest = `
sources:
  - name: unemployment
    file: unemployment.csv
    kind: period
    metric: unemployment_rate
    columns:
      "County Name": county
      "State FIPS Code": state_fips
      "Period": period
      "Rate (%)": value
  - name: federal_employment
    file: federal.csv
    kind: monthly_wide
    metric: federal_employment
    columns:
      "County": county
      "State": state
      "Year": year
      "January Employment": "month:01"
  - name: snap
    file: snap.csv
    kind: static
    metric: snap_households
    columns:
      "County": county
      "State": state
      "Households": value
  - name: cost_of_living
    file: cost.csv
    kind: static
    metric: cost_index
    columns:
      "County": county
      "State": state
      "Total Cost": value
`

func TestLoadSourcesEmptyPathUsesDefaults(t *testing.T) {
	specs, err := LoadSources("")
	require.NoError(t, err)
	assert.Equal(t, DefaultSources(), specs)
}

func TestLoadSourcesManifest(t *testing.T) {
	specs, err := LoadSources(writeManifest(t, validManifest))
	require.NoError(t, err)
	require.Len(t, specs, 4)

	unemp := specs[0]
	assert.Equal(t, "unemployment", unemp.Name)
	assert.Equal(t, "unemployment.csv", unemp.File)
	assert.Equal(t, domain.KindPeriod, unemp.Kind)

	// Manifest headers are raw publisher spellings, normalized on load.
	assert.Equal(t, domain.RoleCounty, unemp.Columns["countyname"])
	assert.Equal(t, domain.RoleStateFIPS, unemp.Columns["statefipscode"])
	assert.Equal(t, domain.RoleValue, unemp.Columns["rate"])

	assert.Equal(t, "month:01", specs[1].Columns["januaryemployment"])
}

func TestLoadSourcesManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "not yaml",
			body:    "{{nope",
			wantErr: "parse sources manifest",
		},
		{
			name: "unknown kind",
			body: `
sources:
  - name: unemployment
    file: u.csv
    kind: sideways
    metric: unemployment_rate
`,
			wantErr: `unknown kind "sideways"`,
		},
		{
			name: "unknown column role",
			body: `
sources:
  - name: unemployment
    file: u.csv
    kind: period
    metric: unemployment_rate
    columns:
      "County": mayor
`,
			wantErr: `unknown column role "mayor"`,
		},
		{
			name: "missing file",
			body: `
sources:
  - name: unemployment
    kind: period
    metric: unemployment_rate
`,
			wantErr: "name and file are required",
		},
		{
			name: "missing required source",
			body: `
sources:
  - name: unemployment
    file: u.csv
    kind: period
    metric: unemployment_rate
`,
			wantErr: `missing source "federal_employment"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSources(writeManifest(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSourcesMissingFile(t *testing.T) {
	_, err := LoadSources(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read sources manifest")
}
