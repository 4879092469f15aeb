// Package harness provides conformance testing for traversal plans.
//
// The harness loads a plan document and an optional graph fixture,
// compiles the plan through the full strategy pipeline, executes it,
// and validates the compiled rendering, the result values, and the
// side-effect bag against the scenario's expectations.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	plan: plans/plan.cue
//	graph: graphs/modern.yaml
//	mode: standard
//	expect:
//	  pipeline: "[scan(person) -> count()]"
//	  results: ["4"]
//	  side_effects: { seen: "[marko vadas]" }
//
// Paths are resolved relative to the scenario file. A scenario may
// instead expect a compile or run failure:
//
//	expect:
//	  error: "at least one label"
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory SQLite store loaded
// from its fixture, so runs are isolated and reproducible. Result
// values are normalized to strings before comparison, which keeps
// expectations stable across numeric representations.
//
// # Usage
//
// Load and run a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/knows_names.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
//
// In tests, RunWithGolden additionally pins the full result snapshot
// against a golden file under testdata/golden.
package harness
