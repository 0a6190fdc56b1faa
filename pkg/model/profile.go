package model

import (
	"os"

	"github.com/m-mizutani/goerr/v2"
	"gopkg.in/yaml.v3"
)

// Profile holds the user's known conditions, passed as context to the
// diagnosis service
type Profile struct {
	Name       string   `yaml:"name"`
	Conditions []string `yaml:"conditions"`
}

// LoadProfile reads a profile from a YAML file. An empty path yields an
// empty profile.
func LoadProfile(path string) (*Profile, error) {
	if path == "" {
		return &Profile{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read profile file", goerr.V("path", path))
	}

	var profile Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, goerr.Wrap(err, "failed to parse profile file", goerr.V("path", path))
	}

	return &profile, nil
}
