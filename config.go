package mavity

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// DefaultParams returns the built-in parameter set.
func DefaultParams() SimParams {
	var p SimParams
	if err := yaml.Unmarshal(defaultsYAML, &p); err != nil {
		// The embedded defaults are part of the build; failing to parse them
		// is a programmer error.
		panic(fmt.Sprintf("mavity: embedded defaults.yaml: %v", err))
	}
	return p
}

// LoadParams returns the defaults overlaid with the YAML file at path.
// An empty path returns the defaults unchanged.
func LoadParams(path string) (SimParams, error) {
	p := DefaultParams()
	if path == "" {
		return p, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return p, fmt.Errorf("load params: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("load params %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return p, err
	}
	return p, nil
}
