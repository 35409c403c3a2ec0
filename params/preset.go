package params

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// LoadPreset reads a YAML preset file. Fields absent from the file keep their
// default values, so a preset only needs to list what it changes.
func LoadPreset(path string) (ParameterSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ParameterSet{}, fmt.Errorf("read preset %s: %w", path, err)
	}
	return ParsePreset(data)
}

// ParsePreset decodes preset YAML layered over Defaults and validates the result.
func ParsePreset(data []byte) (ParameterSet, error) {
	p := Defaults()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return ParameterSet{}, fmt.Errorf("%w: decode preset: %v", ErrInvalidParams, err)
	}
	if err := p.Validate(); err != nil {
		return ParameterSet{}, err
	}
	return p, nil
}

// MarshalPreset encodes p as preset YAML.
func MarshalPreset(p ParameterSet) ([]byte, error) {
	return yaml.Marshal(p)
}

// UnmarshalYAML lets presets name the demosaic algorithm ("amaze") as well as
// give its numeric code (12).
func (d *DemosaicAlgorithm) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.ScalarNode {
		return fmt.Errorf("%w: demosaic_algorithm must be a scalar", ErrInvalidParams)
	}
	parsed, err := ParseDemosaic(value.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MarshalYAML writes the algorithm by name.
func (d DemosaicAlgorithm) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}
