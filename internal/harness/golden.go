package harness

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/searchgen/internal/docgen"
	"github.com/roach88/searchgen/internal/sqlgen"
)

// Snapshot captures the compiled output of a scenario.
type Snapshot struct {
	Name         string               `json:"name"`
	Backend      string               `json:"backend"`
	Clause       *sqlgen.Clause       `json:"clause,omitempty"`
	Query        docgen.Query         `json:"query,omitempty"`
	UsedMappings []docgen.UsedMapping `json:"used_mappings,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// Marshal renders the snapshot as indented JSON. Map keys are sorted by
// encoding/json, so the output is deterministic.
func (s *Snapshot) Marshal() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func snapshotOf(name, backend string, result *Result) *Snapshot {
	return &Snapshot{
		Name:         name,
		Backend:      backend,
		Clause:       result.Clause,
		Query:        result.Query,
		UsedMappings: result.UsedMappings,
		Error:        result.CompileError,
	}
}

// RunWithGolden executes a scenario and compares its output against a golden
// file. The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the output doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	data, err := snapshotOf(scenario.Name, scenario.backend(), result).Marshal()
	if err != nil {
		return nil, err
	}
	assertGolden(t, scenario.Name, data)
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name, backend string, result *Result) error {
	t.Helper()

	data, err := snapshotOf(name, backend, result).Marshal()
	if err != nil {
		return err
	}
	assertGolden(t, name, data)
	return nil
}

func assertGolden(t *testing.T, name string, data []byte) {
	t.Helper()
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
