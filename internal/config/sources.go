package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/federalrisk/county-risk-etl/internal/domain"
)

// Well-known source names the pipeline wires by role.
const (
	SourceFederalEmployment = "federal_employment"
	SourceUnemployment      = "unemployment"
	SourceSNAP              = "snap"
	SourceCostOfLiving      = "cost_of_living"
)

// DefaultSources returns the built-in source specs matching the upstream
// publishers' current file layouts. A YAML manifest (SOURCES_FILE) replaces
// them wholesale when the publishers change their columns.
func DefaultSources() []domain.SourceSpec {
	federalColumns := map[string]string{
		"county": domain.RoleCounty,
		"state":  domain.RoleState,
		"year":   domain.RoleYear,
	}
	for m := time.January; m <= time.December; m++ {
		federalColumns[domain.NormalizeHeader(m.String()+" Employment")] = domain.MonthRole(m)
	}

	return []domain.SourceSpec{
		{
			Name:    SourceUnemployment,
			File:    "unemploymentByCounty.csv",
			Kind:    domain.KindPeriod,
			Metric:  domain.MetricUnemploymentRate,
			Columns: map[string]string{
				"county":            domain.RoleCounty,
				"countyname":        domain.RoleCounty,
				"state":             domain.RoleState,
				"statefipscode":     domain.RoleStateFIPS,
				"period":            domain.RolePeriod,
				"unemploymentrate":  domain.RoleValue,
				"unemploymentrate%": domain.RoleValue,
				"rate":              domain.RoleValue,
			},
		},
		{
			Name:    SourceFederalEmployment,
			File:    "federalEmploymentByCounty.csv",
			Kind:    domain.KindMonthlyWide,
			Metric:  domain.MetricFederalEmployment,
			Columns: federalColumns,
		},
		{
			Name:    SourceSNAP,
			File:    "snapParticipationByCounty.csv",
			Kind:    domain.KindStatic,
			Metric:  domain.MetricSNAPHouseholds,
			Columns: map[string]string{
				"county":         domain.RoleCounty,
				"countyname":     domain.RoleCounty,
				"state":          domain.RoleState,
				"statename":      domain.RoleState,
				"snaphouseholds": domain.RoleValue,
				"snappct":        domain.RoleValue,
			},
		},
		{
			Name:    SourceCostOfLiving,
			File:    "costOfLivingByCounty.csv",
			Kind:    domain.KindStatic,
			Metric:  domain.MetricCostIndex,
			Columns: map[string]string{
				"county":    domain.RoleCounty,
				"state":     domain.RoleState,
				"totalcost": domain.RoleValue,
				"costindex": domain.RoleValue,
			},
		},
	}
}

// sourcesManifest is the YAML shape of a SOURCES_FILE override.
type sourcesManifest struct {
	Sources []struct {
		Name    string            `yaml:"name"`
		File    string            `yaml:"file"`
		Kind    string            `yaml:"kind"`
		Metric  string            `yaml:"metric"`
		Columns map[string]string `yaml:"columns"`
	} `yaml:"sources"`
}

var monthRoleRe = regexp.MustCompile(`^month:(0[1-9]|1[0-2])$`)

// LoadSources resolves the source specs: the YAML manifest at path when
// given, the built-in defaults otherwise. Manifest column keys are raw
// headers and are normalized on load, so the file can name columns the way
// the publisher prints them.
func LoadSources(path string) ([]domain.SourceSpec, error) {
	if path == "" {
		return DefaultSources(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources manifest: %w", err)
	}
	var manifest sourcesManifest
	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse sources manifest: %w", err)
	}

	specs := make([]domain.SourceSpec, 0, len(manifest.Sources))
	names := make(map[string]bool)
	for _, s := range manifest.Sources {
		spec := domain.SourceSpec{
			Name:    s.Name,
			File:    s.File,
			Kind:    domain.SourceKind(s.Kind),
			Metric:  s.Metric,
			Columns: make(map[string]string, len(s.Columns)),
		}
		for header, role := range s.Columns {
			if !validRole(role) {
				return nil, fmt.Errorf("source %s: unknown column role %q", s.Name, role)
			}
			spec.Columns[domain.NormalizeHeader(header)] = role
		}
		switch spec.Kind {
		case domain.KindMonthlyWide, domain.KindPeriod, domain.KindStatic:
		default:
			return nil, fmt.Errorf("source %s: unknown kind %q", s.Name, s.Kind)
		}
		if spec.Name == "" || spec.File == "" {
			return nil, fmt.Errorf("sources manifest: name and file are required")
		}
		names[spec.Name] = true
		specs = append(specs, spec)
	}

	for _, required := range []string{SourceUnemployment, SourceFederalEmployment, SourceSNAP, SourceCostOfLiving} {
		if !names[required] {
			return nil, fmt.Errorf("sources manifest: missing source %q", required)
		}
	}
	return specs, nil
}

func validRole(role string) bool {
	switch role {
	case domain.RoleCounty, domain.RoleState, domain.RoleStateFIPS,
		domain.RoleYear, domain.RolePeriod, domain.RoleValue:
		return true
	}
	return monthRoleRe.MatchString(role)
}
