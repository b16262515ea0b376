// Package harness runs conformance scenarios for the condition generators.
//
// A scenario pairs a mapping file with a condition fixture, compiles it for
// one backend, and checks the output against expectations and assertions.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	mapping: ../mappings/users.yaml      # relative to the scenario file
//	condition: ../conditions/active.yaml
//	backend: sql                          # sql (default) or document
//	prefix: "WHERE "
//	setup:                                # SQLite statements for rows assertions
//	  - CREATE TABLE users (id INTEGER, name TEXT)
//	  - INSERT INTO users VALUES (1, 'alice')
//	expect:
//	  sql: "WHERE u.name = :search_0"
//	  params:
//	    - {name: search_0, value: alice}
//	  order_by: ["u.id ASC"]
//	assertions:
//	  - type: rows
//	    query: SELECT u.id FROM users u
//	    rows: [1]
//	  - type: cache_stable
//
// An expected error is written as expect.error; the scenario passes when
// compilation fails with a message containing it.
//
// # Assertion Types
//
//   - rows: Executes the clause against the setup data in an in-memory
//     SQLite database and compares the first column of every row
//   - param_count: Verifies the number of bound parameters
//   - used_mappings: Verifies the document mappings used, in first-use order
//   - contains: Verifies the SQL text or query JSON contains a substring
//   - cache_stable: Compiles twice through a memory cache and verifies the
//     second result is a hit equal to the first
//
// # Golden Files
//
// RunWithGolden snapshots the compiled output under testdata/golden. To
// regenerate:
//
//	go test ./internal/harness -update
package harness
