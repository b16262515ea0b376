package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/searchgen/internal/docgen"
	"github.com/roach88/searchgen/internal/sqlgen"
)

// Scenario defines a conformance test scenario.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Mapping and Condition are file paths, relative to the scenario file
	// when loaded with LoadScenario.
	Mapping   string `yaml:"mapping"`
	Condition string `yaml:"condition"`

	// Backend is "sql" or "document". Empty means sql.
	Backend string `yaml:"backend,omitempty"`

	// Prefix is passed to the SQL compile.
	Prefix string `yaml:"prefix,omitempty"`

	// Setup holds SQLite statements run before rows assertions.
	Setup []string `yaml:"setup,omitempty"`

	// Expect checks the compiled output exactly.
	Expect *Expect `yaml:"expect,omitempty"`

	// Assertions check properties of the compiled output.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// Expect specifies the expected compile output. Unset fields are not checked.
type Expect struct {
	// SQL is a pointer so an empty clause can be expected.
	SQL     *string     `yaml:"sql,omitempty"`
	Params  []ParamSpec `yaml:"params,omitempty"`
	OrderBy []string    `yaml:"order_by,omitempty"`

	// Error is a substring of the expected compile or setup error.
	Error string `yaml:"error,omitempty"`
}

// ParamSpec is one expected parameter. Value uses the condition fixture
// value syntax, so typed values like {time: ...} are allowed.
type ParamSpec struct {
	Name  string `yaml:"name"`
	Value any    `yaml:"value"`
	Type  string `yaml:"type,omitempty"`
}

// Assertion validates a property of the output.
type Assertion struct {
	// Type specifies the assertion type:
	// - "rows": Execute against setup data and compare first-column values
	// - "param_count": Check the number of bound parameters
	// - "used_mappings": Check the document mappings used
	// - "contains": Check the output text contains Text
	// - "cache_stable": Check a memory cache returns an equal hit
	Type string `yaml:"type"`

	// Query is the SELECT the clause is appended to (used by rows).
	Query string `yaml:"query,omitempty"`

	// Rows are the expected first-column values in order (used by rows).
	Rows []any `yaml:"rows,omitempty"`

	// Count is the expected parameter count (used by param_count).
	Count int `yaml:"count,omitempty"`

	// Fields are the expected logical field names (used by used_mappings).
	Fields []string `yaml:"fields,omitempty"`

	// Text is the expected substring (used by contains).
	Text string `yaml:"text,omitempty"`
}

// Assertion type constants.
const (
	AssertRows         = "rows"
	AssertParamCount   = "param_count"
	AssertUsedMappings = "used_mappings"
	AssertContains     = "contains"
	AssertCacheStable  = "cache_stable"
)

// LoadScenario reads and parses a scenario YAML file.
// Mapping and condition paths are resolved relative to the scenario file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	scenario.Mapping = resolve(base, scenario.Mapping)
	scenario.Condition = resolve(base, scenario.Condition)

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml scenario in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no scenarios found in %s", dir)
	}
	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

func resolve(base, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(base, path)
}

// backend returns the scenario backend with the default applied.
func (s *Scenario) backend() string {
	if s.Backend == "" {
		return sqlgen.Kind
	}
	return s.Backend
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Mapping == "" {
		return fmt.Errorf("mapping is required")
	}
	if s.Condition == "" {
		return fmt.Errorf("condition is required")
	}
	for _, p := range []string{s.Mapping, s.Condition} {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", p)
		}
	}

	backend := s.backend()
	if backend != sqlgen.Kind && backend != docgen.Kind {
		return fmt.Errorf("unknown backend %q", s.Backend)
	}
	if s.Expect == nil && len(s.Assertions) == 0 {
		return fmt.Errorf("expect or assertions is required")
	}
	if s.Expect != nil && backend == docgen.Kind && (s.Expect.SQL != nil || len(s.Expect.Params) > 0 || len(s.Expect.OrderBy) > 0) {
		return fmt.Errorf("expect: sql, params and order_by apply to the sql backend only")
	}

	for i, a := range s.Assertions {
		if err := validateAssertion(i, &a, s); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, s *Scenario) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	backend := s.backend()
	switch a.Type {
	case AssertRows:
		if backend != sqlgen.Kind {
			return fmt.Errorf("assertions[%d]: rows requires the sql backend", index)
		}
		if a.Query == "" {
			return fmt.Errorf("assertions[%d]: query is required for rows", index)
		}
		if len(s.Setup) == 0 {
			return fmt.Errorf("assertions[%d]: rows requires setup statements", index)
		}
	case AssertParamCount:
		if backend != sqlgen.Kind {
			return fmt.Errorf("assertions[%d]: param_count requires the sql backend", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for param_count", index)
		}
	case AssertUsedMappings:
		if backend != docgen.Kind {
			return fmt.Errorf("assertions[%d]: used_mappings requires the document backend", index)
		}
	case AssertContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for contains", index)
		}
	case AssertCacheStable:
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
