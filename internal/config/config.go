package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// VariableSet is an allowlist of Open-Meteo variable names for one axis
// (hourly or daily) of a forecast request.
type VariableSet struct {
	Axis      string   `yaml:"axis"` // hourly, daily
	Variables []string `yaml:"variables"`
}

// Model is one accepted upstream weather model.
type Model struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// CardOverrides lets deployments rebrand the published agent card without
// touching code.
type CardOverrides struct {
	ID      string `yaml:"id"`
	Name    string `yaml:"name"`
	Version string `yaml:"version"`
	Owner   string `yaml:"owner"`
}

type Definitions struct {
	Hourly map[string]bool
	Daily  map[string]bool
	Models map[string]Model
	Card   CardOverrides
}

// AllowsHourly reports whether the hourly variable name is in the allowlist.
// An empty allowlist accepts everything, so a bare deployment keeps working.
func (d *Definitions) AllowsHourly(name string) bool {
	if len(d.Hourly) == 0 {
		return true
	}
	return d.Hourly[name]
}

func (d *Definitions) AllowsDaily(name string) bool {
	if len(d.Daily) == 0 {
		return true
	}
	return d.Daily[name]
}

func (d *Definitions) AllowsModel(name string) bool {
	if len(d.Models) == 0 {
		return true
	}
	_, ok := d.Models[name]
	return ok
}

func LoadFromDir(base string) (*Definitions, error) {
	defs := &Definitions{
		Hourly: make(map[string]bool),
		Daily:  make(map[string]bool),
		Models: make(map[string]Model),
	}

	if err := loadVariablesDir(filepath.Join(base, "variables"), defs); err != nil {
		return nil, err
	}
	if err := loadModelsDir(filepath.Join(base, "models"), defs); err != nil {
		return nil, err
	}
	if err := loadCardDir(filepath.Join(base, "card"), defs); err != nil {
		return nil, err
	}

	return defs, nil
}

func loadVariablesDir(dir string, defs *Definitions) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading variables dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var raw struct {
			Sets []VariableSet `yaml:"variable_sets"`
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		for _, set := range raw.Sets {
			switch set.Axis {
			case "hourly":
				for _, v := range set.Variables {
					defs.Hourly[v] = true
				}
			case "daily":
				for _, v := range set.Variables {
					defs.Daily[v] = true
				}
			default:
				return fmt.Errorf("parsing %s: unknown axis %q", path, set.Axis)
			}
		}
	}
	return nil
}

func loadModelsDir(dir string, defs *Definitions) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("reading models dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var raw struct {
			Models []Model `yaml:"models"`
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		for _, m := range raw.Models {
			defs.Models[m.Name] = m
		}
	}
	return nil
}

func loadCardDir(dir string, defs *Definitions) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		// card overrides are optional
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading card dir: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		var raw struct {
			Card CardOverrides `yaml:"card"`
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		if raw.Card.ID != "" {
			defs.Card.ID = raw.Card.ID
		}
		if raw.Card.Name != "" {
			defs.Card.Name = raw.Card.Name
		}
		if raw.Card.Version != "" {
			defs.Card.Version = raw.Card.Version
		}
		if raw.Card.Owner != "" {
			defs.Card.Owner = raw.Card.Owner
		}
	}
	return nil
}
