package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Instrument is one roster entry: the stable device name clients
// address, and the profile the driver is built from. The roster is
// read once at startup; the hosted set never changes at runtime.
type Instrument struct {
	Name    string `yaml:"name"`
	Profile string `yaml:"profile"`
}

type Roster struct {
	Instruments []Instrument `yaml:"instruments"`
}

func LoadRoster(path string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster: %w", err)
	}

	var roster Roster
	if err := yaml.Unmarshal(data, &roster); err != nil {
		return nil, fmt.Errorf("failed to parse roster: %w", err)
	}

	seen := make(map[string]bool, len(roster.Instruments))
	for _, inst := range roster.Instruments {
		if inst.Name == "" || inst.Profile == "" {
			return nil, fmt.Errorf("roster entry missing name or profile")
		}
		if seen[inst.Name] {
			return nil, fmt.Errorf("duplicate instrument name: %s", inst.Name)
		}
		seen[inst.Name] = true
	}

	return &roster, nil
}
