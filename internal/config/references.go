package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tariff holds the pricing and emissions factors applied to consumption.
type Tariff struct {
	RatePerKWh     float64 `yaml:"rate_per_kwh"`
	CarbonKgPerKWh float64 `yaml:"carbon_kg_per_kwh"`
}

// BenchmarkReference holds the population reference values a user aggregate
// is ranked against for one category.
type BenchmarkReference struct {
	Category      string  `yaml:"category"`
	Peer          float64 `yaml:"peer"`
	Regional      float64 `yaml:"regional"`
	National      float64 `yaml:"national"`
	Target        float64 `yaml:"target"`
	LowerIsBetter bool    `yaml:"lower_is_better"`
}

// References bundles tariff and benchmark reference data. The values are
// hand-tuned population figures, not a derived distribution.
type References struct {
	Tariff     Tariff               `yaml:"tariff"`
	Benchmarks []BenchmarkReference `yaml:"benchmarks"`
}

// DefaultReferences returns the built-in reference set used when no YAML
// file is configured.
func DefaultReferences() *References {
	return &References{
		Tariff: Tariff{
			RatePerKWh:     0.12,
			CarbonKgPerKWh: 0.42,
		},
		Benchmarks: []BenchmarkReference{
			{Category: "consumption", Peer: 450, Regional: 480, National: 500, Target: 360, LowerIsBetter: true},
			{Category: "cost", Peer: 54, Regional: 58, National: 60, Target: 43, LowerIsBetter: true},
			{Category: "efficiency", Peer: 75, Regional: 72, National: 70, Target: 90, LowerIsBetter: false},
		},
	}
}

// LoadReferences reads reference data from a YAML file, falling back to the
// defaults when path is empty.
func LoadReferences(path string) (*References, error) {
	if path == "" {
		return DefaultReferences(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read references file: %w", err)
	}

	refs := DefaultReferences()
	if err := yaml.Unmarshal(data, refs); err != nil {
		return nil, fmt.Errorf("failed to parse references file: %w", err)
	}

	if refs.Tariff.RatePerKWh <= 0 {
		return nil, fmt.Errorf("references: tariff rate must be positive")
	}
	for _, b := range refs.Benchmarks {
		if b.Peer <= 0 || b.Regional <= 0 || b.National <= 0 {
			return nil, fmt.Errorf("references: %s reference values must be positive", b.Category)
		}
	}

	return refs, nil
}

// Benchmark returns the reference entry for a category, or nil when the
// category has no reference data.
func (r *References) Benchmark(category string) *BenchmarkReference {
	for i := range r.Benchmarks {
		if r.Benchmarks[i].Category == category {
			return &r.Benchmarks[i]
		}
	}
	return nil
}
