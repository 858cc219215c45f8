// Package params loads instrument parameters files and watches them for
// changes, publishing a "new parameters file" message when the file on disk
// is rewritten.
package params

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

var (
	// ErrParametersNotFound is returned when the parameters file does not
	// exist.
	ErrParametersNotFound = errors.New("parameters file not found")

	// ErrParametersParse is returned when the parameters file cannot be
	// decoded.
	ErrParametersParse = errors.New("parameters parse error")
)

// Parameters holds the decoded contents of a parameters file.
type Parameters struct {
	path   string
	values map[string]any
}

// Load reads and decodes a YAML parameters file.
func Load(path string) (*Parameters, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrParametersNotFound, path)
		}
		return nil, fmt.Errorf("failed to read parameters file %s: %w", path, err)
	}

	values := make(map[string]any)
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParametersParse, path, err)
	}

	return &Parameters{path: path, values: values}, nil
}

// Path returns the file the parameters were loaded from.
func (p *Parameters) Path() string {
	return p.path
}

// Len returns the number of top-level parameters.
func (p *Parameters) Len() int {
	return len(p.values)
}

// Get returns a parameter value by name.
func (p *Parameters) Get(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok
}

// GetString returns a string parameter by name.
func (p *Parameters) GetString(name string) (string, bool) {
	v, ok := p.values[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetInt returns an integer parameter by name.
func (p *Parameters) GetInt(name string) (int, bool) {
	v, ok := p.values[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	default:
		return 0, false
	}
}

// GetFloat returns a floating point parameter by name.
func (p *Parameters) GetFloat(name string) (float64, bool) {
	v, ok := p.values[name]
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}
