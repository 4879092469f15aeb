package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/hopscotch/internal/pipeline"
)

// Scenario defines a conformance test scenario: one plan, an optional
// graph fixture, and expectations on the compiled pipeline and its
// output.
type Scenario struct {
	// Name uniquely identifies this scenario. Golden files are named
	// after it.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Plan is the path to the CUE plan document, relative to the
	// scenario file location.
	Plan string `yaml:"plan"`

	// Graph is the path to a YAML graph fixture loaded into a fresh
	// in-memory store, relative to the scenario file location. Empty
	// for plans that seed themselves (inject).
	Graph string `yaml:"graph,omitempty"`

	// Mode overrides the plan's execution mode ("standard" or
	// "computer"). Empty keeps the plan's own mode.
	Mode string `yaml:"mode,omitempty"`

	// Expect holds the checks applied after the run.
	Expect ExpectClause `yaml:"expect"`
}

// ExpectClause specifies expected compile and run behavior. Every field
// is optional, but at least one must be set.
type ExpectClause struct {
	// Pipeline is the exact rendering of the compiled pipeline.
	Pipeline string `yaml:"pipeline,omitempty"`

	// Results are the expected output values in order, normalized to
	// strings. An empty list asserts the run produced nothing; absent
	// means unchecked.
	Results []string `yaml:"results,omitempty"`

	// SideEffects are expected bag entries, normalized to strings.
	// Subset match - only specified keys are validated.
	SideEffects map[string]string `yaml:"side_effects,omitempty"`

	// Error expects compilation or execution to fail with a message
	// containing this substring. Mutually exclusive with the other
	// checks.
	Error string `yaml:"error,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file. Plan and graph
// paths are resolved relative to the scenario file. Returns an error if
// the file doesn't exist, is malformed, contains unknown fields
// (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	if scenario.Plan != "" && !filepath.IsAbs(scenario.Plan) {
		scenario.Plan = filepath.Join(base, scenario.Plan)
	}
	if scenario.Graph != "" && !filepath.IsAbs(scenario.Graph) {
		scenario.Graph = filepath.Join(base, scenario.Graph)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Plan == "" {
		return fmt.Errorf("plan is required")
	}
	if _, err := os.Stat(s.Plan); os.IsNotExist(err) {
		return fmt.Errorf("plan file not found: %s", s.Plan)
	}

	if s.Graph != "" {
		if _, err := os.Stat(s.Graph); os.IsNotExist(err) {
			return fmt.Errorf("graph fixture not found: %s", s.Graph)
		}
	}

	if _, err := pipeline.ParseMode(s.Mode); err != nil {
		return err
	}

	e := s.Expect
	if e.Pipeline == "" && e.Results == nil && len(e.SideEffects) == 0 && e.Error == "" {
		return fmt.Errorf("expect requires at least one check")
	}
	if e.Error != "" && (e.Pipeline != "" || e.Results != nil || len(e.SideEffects) > 0) {
		return fmt.Errorf("expect.error excludes the other checks")
	}

	return nil
}
