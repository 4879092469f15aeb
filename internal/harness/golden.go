package harness

import (
	"encoding/json"
	"path/filepath"
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// Snapshot is the serialized form of a scenario result, compared
// against golden files byte for byte.
type Snapshot struct {
	ScenarioName string            `json:"scenario_name"`
	Pipeline     string            `json:"pipeline,omitempty"`
	Results      []string          `json:"results"`
	SideEffects  map[string]string `json:"side_effects,omitempty"`
	Failure      string            `json:"failure,omitempty"`
}

// RunWithGolden executes a scenario, applies its expect checks, and
// compares the result snapshot against a golden file stored in
// testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, msg := range result.Errors {
		t.Error(msg)
	}

	return AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an already-obtained result against the golden
// file for scenarioName without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	snapshot := Snapshot{
		ScenarioName: scenarioName,
		Pipeline:     result.Pipeline,
		Results:      result.Values,
		SideEffects:  result.SideEffects,
		Failure:      result.Failure,
	}
	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, append(data, '\n'))

	return nil
}

// RunSuite runs every scenario YAML under dir as a subtest named after
// the scenario, each pinned to its golden file.
func RunSuite(t *testing.T, dir string) {
	t.Helper()

	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		t.Fatalf("glob scenarios in %s: %v", dir, err)
	}
	if len(paths) == 0 {
		t.Fatalf("no scenarios found in %s", dir)
	}
	sort.Strings(paths)

	for _, path := range paths {
		scenario, err := LoadScenario(path)
		if err != nil {
			t.Errorf("load %s: %v", path, err)
			continue
		}
		t.Run(scenario.Name, func(t *testing.T) {
			if err := RunWithGolden(t, scenario); err != nil {
				t.Fatal(err)
			}
		})
	}
}
