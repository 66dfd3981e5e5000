// Package harness runs simulation scenarios and checks their run logs.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	config:                 # inline run configuration, or
//	  end_time: 2
//	config_file: run.toml   # a file relative to the scenario
//	run_id: optional-fixed-id
//	expect_error: optional substring of the expected run error
//	assertions:
//	  - type: trace_order
//	    events: [start_of_run, factor, end_of_run]
//	  - type: trace_contains
//	    event: "pair(0,1)"
//	    time: 0.25
//	    tolerance: 1e-12
//	  - type: final_position
//	    particle: 0
//	    position: [0.375, 0.5]
//
// # Assertion Types
//
//   - trace_contains: an event of that kind or handler occurs, optionally at a time
//   - trace_order: first occurrences appear in the given order
//   - trace_count: occurrences of a kind or handler, exact or bounded
//   - sample_count: number of sampling events
//   - trajectory: number of samples of one particle stored in the run log
//   - final_time: time of the last committed event
//   - final_position: position of a particle after the run
//
// # Deterministic Testing
//
// Every scenario runs against a fresh in-memory run log with a fixed run id
// and the seeded random source of its configuration. Traces are therefore
// byte-identical across runs and suitable for golden file comparison.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/two_spheres.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
