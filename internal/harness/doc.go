// Package harness provides conformance testing for the stigc compiler.
//
// A scenario names one package document, what compiling it must produce,
// and assertions over the emitted Go source. Each scenario compiles against
// a fresh in-memory registry with fixed build ids, so results are
// reproducible and can be compared against golden files.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	source: |
//	  package: demo
//	  defs:
//	    - name: one
//	      body: 1
//	max_passes: 3
//	expect:
//	  errors:
//	    - {code: E210, line: 4}
//	  exports:
//	    one: int
//	assertions:
//	  - type: source_contains
//	    text: "return int64(1)"
//	  - type: function_count
//	    count: 1
//
// A scenario gives either an inline source or a file, resolved relative to
// the scenario file. An inline source is parsed as YAML and named after the
// scenario; a file is parsed according to its extension.
//
// # Assertion Types
//
//   - source_contains: the emitted source contains text
//   - source_excludes: the emitted source does not contain text
//   - function_count: exactly count functions were emitted
//   - shared_count: exactly count shared values were bound to identifiers
//   - rebuild_stable: compiling again yields the same source and version
//
// Assertions over the source require the scenario to compile. A scenario
// that expects errors may only use expect.errors.
//
// # Golden Files
//
// RunWithGolden compares the emitted source against
// testdata/golden/{name}.golden. To regenerate golden files, run:
//
//	go test ./internal/harness -update
package harness
