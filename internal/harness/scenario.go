package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance test scenario: one schema and a list of
// path expressions with expected compilation outcomes.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are stored
	// under testdata/golden/{Name}.golden.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Schema is the inline CUE schema declaration the paths compile
	// against.
	Schema string `yaml:"schema"`

	// Paths contains the expressions to compile, in order.
	Paths []PathCase `yaml:"paths"`
}

// PathCase is one path expression with its expected outcome.
type PathCase struct {
	// Expr is the path expression to compile.
	Expr string `yaml:"expr"`

	// WantPath is the expected canonical identity of the compiled path.
	// Empty means not asserted.
	WantPath string `yaml:"want_path,omitempty"`

	// WantType is the expected result type name. Empty means not
	// asserted.
	WantType string `yaml:"want_type,omitempty"`

	// WantError is a substring the compilation error must contain. When
	// set, compilation must fail.
	WantError string `yaml:"want_error,omitempty"`
}

// LoadScenario reads and validates a scenario from a YAML file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading scenario: %w", err)
	}

	var s Scenario
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing scenario %s: %w", path, err)
	}

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}
	return &s, nil
}

// LoadScenarios reads every .yaml scenario in a directory, sorted by
// filename for deterministic order.
func LoadScenarios(dir string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading scenario directory: %w", err)
	}

	var scenarios []*Scenario
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := filepath.Ext(entry.Name())
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		s, err := LoadScenario(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// Validate checks structural requirements before a scenario runs.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("scenario name is required")
	}
	if s.Schema == "" {
		return fmt.Errorf("scenario schema is required")
	}
	if len(s.Paths) == 0 {
		return fmt.Errorf("scenario has no paths")
	}
	for i, pc := range s.Paths {
		if pc.Expr == "" {
			return fmt.Errorf("paths[%d]: expr is required", i)
		}
		if pc.WantError != "" && (pc.WantPath != "" || pc.WantType != "") {
			return fmt.Errorf("paths[%d]: want_error excludes want_path and want_type", i)
		}
	}
	return nil
}
