// Package config loads the CLI host settings from a YAML or TOML file.
// Everything has a default; flags override whatever the file sets.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Settings is the host configuration.
type Settings struct {
	BatchSize  int    `yaml:"batch_size" toml:"batch_size"`   // rows per pulled batch
	Workers    int    `yaml:"workers" toml:"workers"`         // column converters per batch
	Concurrent int    `yaml:"concurrent" toml:"concurrent"`   // datasets processed in parallel
	Catalog    string `yaml:"catalog" toml:"catalog"`         // catalog connection string
	NoColor    bool   `yaml:"no_color" toml:"no_color"`       // disable colorized output
}

// Default returns settings with all defaults applied.
func Default() *Settings {
	return &Settings{BatchSize: 1024, Workers: 4, Concurrent: 1}
}

// Load reads settings from fname, picking the decoder by extension (.toml,
// otherwise yaml). Missing fields keep their defaults.
func Load(fname string) (*Settings, error) {
	data, err := os.ReadFile(fname) // nolint:gosec // the file to read is a user-provided setting
	if err != nil {
		return nil, fmt.Errorf("can't read settings %s: %w", fname, err)
	}

	res := Default()
	if strings.HasSuffix(fname, ".toml") {
		if err := toml.Unmarshal(data, res); err != nil {
			return nil, fmt.Errorf("can't parse toml settings %s: %w", fname, err)
		}
	} else {
		if err := yaml.Unmarshal(data, res); err != nil {
			return nil, fmt.Errorf("can't parse yaml settings %s: %w", fname, err)
		}
	}

	if err := res.validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", fname, err)
	}
	return res, nil
}

// validate collects all problems at once, not just the first.
func (s *Settings) validate() error {
	errs := new(multierror.Error)
	if s.BatchSize <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("batch_size must be positive, got %d", s.BatchSize))
	}
	if s.Workers <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("workers must be positive, got %d", s.Workers))
	}
	if s.Concurrent <= 0 {
		errs = multierror.Append(errs, fmt.Errorf("concurrent must be positive, got %d", s.Concurrent))
	}
	return errs.ErrorOrNil()
}
