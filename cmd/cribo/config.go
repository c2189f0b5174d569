package main

import (
	"os"

	"gopkg.in/yaml.v3"
)

// config is the optional cribo.yaml shape: the same inputs the CLI flags
// populate, for projects that prefer a checked-in file over a long flag
// list (spec §6 Inputs).
type config struct {
	Roots           []string `yaml:"roots"`
	ForceThirdParty []string `yaml:"force_third_party"`
}

// loadConfig reads path if it exists; a missing file is not an error (the
// CLI falls back to flags/defaults), but a malformed one is.
func loadConfig(path string) (*config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var cfg config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
