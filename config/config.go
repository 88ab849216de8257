// Package config holds the validated run configuration: which scenarios to
// solve, which policy modules each enables, and the solver backend setup.
// Absence of a module from a scenario's list is a first-class configuration
// value, never an accidental omission.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gridwise/capex/planner"
	"github.com/gridwise/capex/solver"
)

// SolverConfig selects and tunes the numerical backend for one scenario.
type SolverConfig struct {
	Backend     string         `json:"backend" yaml:"backend"`
	TimeoutSecs int            `json:"timeoutSecs" yaml:"timeoutSecs"`
	WantDuals   bool           `json:"wantDuals" yaml:"wantDuals"`
	Verbose     bool           `json:"verbose" yaml:"verbose"`
	Flags       map[string]any `json:"flags" yaml:"flags"`
}

// Options converts the file representation into solver options.
func (s SolverConfig) Options() solver.Options {
	return solver.Options{
		Backend:   s.Backend,
		Timeout:   time.Duration(s.TimeoutSecs) * time.Second,
		WantDuals: s.WantDuals,
		Verbose:   s.Verbose,
		Flags:     s.Flags,
	}
}

// ScenarioConfig describes one independent scenario run.
type ScenarioConfig struct {
	Name            string       `json:"name" yaml:"name"`
	InputDir        string       `json:"inputDir" yaml:"inputDir"`
	Modules         []string     `json:"modules" yaml:"modules"`
	StorageBoundary string       `json:"storageBoundary" yaml:"storageBoundary"`
	Solver          SolverConfig `json:"solver" yaml:"solver"`
}

// DataPlatformConfig configures the optional Supabase result upload.
type DataPlatformConfig struct {
	URL    string `json:"url" yaml:"url"`
	Schema string `json:"schema" yaml:"schema"`
	// key is specified via the SUPABASE_KEY env var
	BufferFile string `json:"bufferFile" yaml:"bufferFile"`
}

// Config is the top-level run configuration.
type Config struct {
	Scenarios    []ScenarioConfig    `json:"scenarios" yaml:"scenarios"`
	ResultsDB    string              `json:"resultsDb" yaml:"resultsDb"`
	DataPlatform *DataPlatformConfig `json:"dataPlatform" yaml:"dataPlatform"`
}

// Load reads and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if len(c.Scenarios) == 0 {
		return fmt.Errorf("no scenarios configured")
	}
	seen := make(map[string]bool)
	for i, sc := range c.Scenarios {
		if sc.Name == "" {
			return fmt.Errorf("scenario %d has no name", i)
		}
		if seen[sc.Name] {
			return fmt.Errorf("duplicate scenario name %q", sc.Name)
		}
		seen[sc.Name] = true
		if sc.InputDir == "" {
			return fmt.Errorf("scenario %q has no input directory", sc.Name)
		}
		for _, m := range sc.Modules {
			switch m {
			case planner.ModuleCarbon, planner.ModuleHydrogen, planner.ModuleDemandResponse, planner.ModuleRetrofit, planner.ModuleSteam:
			default:
				return fmt.Errorf("scenario %q enables unknown module %q", sc.Name, m)
			}
		}
		switch sc.StorageBoundary {
		case "", string(planner.BoundaryWrap), string(planner.BoundaryReset):
		default:
			return fmt.Errorf("scenario %q has unknown storage boundary %q", sc.Name, sc.StorageBoundary)
		}
	}
	return nil
}
