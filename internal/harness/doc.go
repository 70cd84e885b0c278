// Package harness runs conformance scenarios against the operator runtime.
//
// A scenario names a manifest directory and a sequence of its runs. Every
// run is executed as an outer call on each listed backend; each backend
// gets its own runtime and in-memory store, and backends run concurrently.
// The harness then checks per-step expectations and scenario assertions,
// and can compare the outcome against a golden snapshot.
//
// # Scenario Format
//
//	name: edges
//	description: "Neighbor reductions over a small edge mesh"
//	manifest: ../manifests/edges
//	backends: [embedded, compiled]   # default: both
//	tolerance: 1e-9                  # default: 1e-6
//	steps:
//	  - run: sum_a
//	    expect:
//	      data: [3, 3, 6, 9]
//	  - run: split_a
//	    expect:
//	      tuple: [[2, 4], [-1, -2]]
//	  - run: unbound
//	    expect:
//	      error: "no connectivity"
//	assertions:
//	  - type: backends_agree
//	  - type: trace_order
//	    runs: [sum_a, split_a]
//	  - type: trace_count
//	    operator: nsum
//	    count: 2
//	  - type: run_log
//	    operator: nsum
//	    status: failed
//	    count: 1
//
// # Determinism
//
// Run IDs are sequential per backend ("embedded-000001", ...), the call
// clock starts at zero, and measured durations come from a stepping clock,
// so snapshots and run logs are reproducible. Float outputs are compared
// within the scenario tolerance; integer and bool outputs exactly.
//
// # Golden Files
//
// RunWithGolden and AssertGolden compare the snapshot of the first backend
// against testdata/golden/{name}.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
