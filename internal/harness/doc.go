// Package harness runs store conformance scenarios.
//
// A scenario is a YAML file describing a sequence of store operations against
// a fresh store, the outcome expected from each, and assertions on the final
// state of the store.
//
// # Scenario Format
//
//	name: dedupe_identical_params
//	description: "Identical run params append instances to one run"
//	system: { J: 1.0 }
//	flow:
//	  - op: save
//	    run: { N: 4, sigma: 0.001 }
//	    artifact: { energy: -1.5 }
//	    expect: { run_id: "1", instance_id: "1", created: true }
//	  - op: save
//	    run: { N: 4, sigma: 0.001 }
//	    artifact: { energy: -1.5 }
//	    expect: { run_id: "1", instance_id: "2", created: false }
//	assertions:
//	  - type: run_count
//	    count: 1
//	  - type: instance_count
//	    run_id: "1"
//	    count: 2
//
// # Operations
//
//   - save: saves artifact with run params (and system params, defaulting to
//     the scenario's); run_id and no_param_safety map to SaveOptions
//   - load: loads run_id, or the latest run when empty
//   - load_all: loads every instance of every fresh run
//   - sysparams: reads the stored system params
//   - legacy: writes a run with only its params group, or only its instances
//     group when missing is "params"
//
// Any step may expect an error kind (STRUCTURAL, PARAM_SAFETY, ARTIFACT_WRITE,
// ARTIFACT_READ) instead of a result.
//
// # Assertion Types
//
//   - run_count: number of runs, legacy included
//   - instance_count: number of instances in run_id
//   - run_order: run ids in enumeration order
//   - diagnostic_count: number of diagnostics of kind
//   - system_params: stored system params equal expect
//
// # Deterministic Testing
//
// Every scenario runs against a fresh file in a temporary directory, with a
// fixed clock (testutil.FixedClock) and the JSON artifact codec, so traces are
// byte-identical across runs and can be compared against golden files.
package harness
