package harness

import (
	"github.com/roach88/searchgen/internal/docgen"
	"github.com/roach88/searchgen/internal/sqlgen"
)

// Result is the outcome of a scenario run.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every expectation and assertion matched.
	Pass bool `json:"pass"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Clause is the compiled SQL output, with the scenario prefix applied.
	// Nil for the document backend and for failed compiles.
	Clause *sqlgen.Clause `json:"clause,omitempty"`

	// Query is the compiled document query.
	Query docgen.Query `json:"query,omitempty"`

	// UsedMappings lists the document mappings used by the compile.
	UsedMappings []docgen.UsedMapping `json:"used_mappings,omitempty"`

	// Rows holds the first-column values of each rows assertion, in order.
	Rows [][]any `json:"rows,omitempty"`

	// CompileError is the compile or setup error message, if any.
	CompileError string `json:"compile_error,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
