package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Tuning holds analysis parameters that are easier to manage in YAML than env vars.
type Tuning struct {
	Cannibalization CannibalizationTuning `yaml:"cannibalization"`
	Windows         WindowTuning          `yaml:"windows"`
	SearchConsole   SearchConsoleTuning   `yaml:"search_console"`
}

// CannibalizationTuning configures the analyzer.
type CannibalizationTuning struct {
	OverlapThreshold float64 `yaml:"overlap_threshold"` // percent of the top page's impressions
}

// WindowTuning configures audit preset windows.
type WindowTuning struct {
	InitialMonths int `yaml:"initial_months"`
	ScheduledDays int `yaml:"scheduled_days"`
	ResultsMonths int `yaml:"results_months"` // default lookback when reading results
}

// SearchConsoleTuning configures the Search Console client.
type SearchConsoleTuning struct {
	RowLimit int64 `yaml:"row_limit"` // rows per page, API maximum is 25000
}

// DefaultTuning returns the built-in parameters.
func DefaultTuning() *Tuning {
	return &Tuning{
		Cannibalization: CannibalizationTuning{OverlapThreshold: 20},
		Windows:         WindowTuning{InitialMonths: 3, ScheduledDays: 14, ResultsMonths: 3},
		SearchConsole:   SearchConsoleTuning{RowLimit: 25000},
	}
}

// LoadTuning loads the tuning file at path over the defaults.
// Returns the defaults without error if the file doesn't exist.
func LoadTuning(path string) (*Tuning, error) {
	cfg := DefaultTuning()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Tuning file is optional
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects out-of-range parameters.
func (t *Tuning) Validate() error {
	if t.Cannibalization.OverlapThreshold <= 0 || t.Cannibalization.OverlapThreshold > 100 {
		return fmt.Errorf("cannibalization.overlap_threshold must be in (0, 100]")
	}
	if t.Windows.InitialMonths < 1 || t.Windows.ResultsMonths < 1 {
		return fmt.Errorf("windows.initial_months and windows.results_months must be >= 1")
	}
	if t.Windows.ScheduledDays < 1 {
		return fmt.Errorf("windows.scheduled_days must be >= 1")
	}
	if t.SearchConsole.RowLimit < 1 || t.SearchConsole.RowLimit > 25000 {
		return fmt.Errorf("search_console.row_limit must be in [1, 25000]")
	}
	return nil
}
