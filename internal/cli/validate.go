package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/searchgen/internal/condition"
	"github.com/roach88/searchgen/internal/loader"
	"github.com/roach88/searchgen/internal/mapping"
)

// Validation issue codes.
const (
	CodeUnmappedField   = "W001" // Condition field has no mapping for the backend
	CodeUnmappedOrder   = "W002" // Sort field has no mapping for the backend
	CodeUnsupportedKind = "E020" // Field receives a value kind its mapping rejects
	CodeInvalidMapping  = "E021" // Mapping entry rejected by the generator
)

// Issue is one validation finding.
type Issue struct {
	Severity string `json:"severity"` // "error" | "warning"
	Field    string `json:"field"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Issues []Issue `json:"issues,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InputOptions{}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check a condition against a mapping without compiling",
		Long: `Check a search condition fixture against a field mapping file.

Reports fields the backend would skip because they have no mapping, and
fields whose values use kinds their mapping does not accept. Warnings do
not fail validation; errors exit with status 1.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, opts, cmd)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func runValidate(rootOpts *RootOptions, opts *InputOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   rootOpts.Verbose,
	}

	in, err := opts.load(formatter)
	if err != nil {
		return err
	}

	result := validateInputs(in)
	if formatter.Format == "json" {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		printValidation(formatter, result)
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d issue(s)", len(result.Issues)))
	}
	return nil
}

// validateInputs walks every field of the condition, primary group
// included, and checks it against the mapping entries of the backend.
func validateInputs(in *inputs) ValidationResult {
	v := &validator{targets: make(map[string][]loader.FieldSpec)}
	for _, f := range in.mapping.Fields {
		if (in.backend == BackendSQL && f.Column == "") || (in.backend == BackendDocument && f.Path == "") {
			continue
		}
		name, err := mapping.ParseName(f.Name)
		if err != nil {
			v.errorf(f.Name, CodeInvalidMapping, "%v", err)
			continue
		}
		v.targets[name.Base] = append(v.targets[name.Base], f)
	}

	// Setup errors surface the same way compile would report them.
	var err error
	if in.backend == BackendSQL {
		_, err = in.sqlGenerator()
	} else {
		_, err = in.documentGenerator()
	}
	if err != nil {
		v.errorf("", CodeInvalidMapping, "%s", setupMessage(err))
	}

	v.group("", in.cond.Root)
	if p := in.cond.Primary; p != nil {
		v.group("primary.", p.Group)
		v.order(p.Order)
	}
	v.order(in.cond.Order)

	v.result.Valid = true
	for _, issue := range v.result.Issues {
		if issue.Severity == "error" {
			v.result.Valid = false
			break
		}
	}
	return v.result
}

type validator struct {
	targets map[string][]loader.FieldSpec
	result  ValidationResult
}

func (v *validator) errorf(field, code, format string, args ...any) {
	v.result.Issues = append(v.result.Issues, Issue{Severity: "error", Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) warnf(field, code, format string, args ...any) {
	v.result.Issues = append(v.result.Issues, Issue{Severity: "warning", Field: field, Code: code, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) group(path string, g *condition.ValuesGroup) {
	if g == nil {
		return
	}
	for _, name := range g.FieldNames() {
		bag, _ := g.Lookup(name)
		specs, ok := v.targets[name]
		if !ok {
			if !bag.Empty() {
				v.warnf(path+name, CodeUnmappedField, "no mapping, field is skipped")
			}
			continue
		}
		for _, spec := range specs {
			desc, err := spec.Descriptor()
			if err != nil {
				// Reported as a setup error already.
				continue
			}
			if err := desc.Check(spec.Name, bag); err != nil {
				v.errorf(path+name, CodeUnsupportedKind, "%s", setupMessage(err))
			}
		}
	}
	for i, child := range g.Children() {
		v.group(fmt.Sprintf("%s[%d].", path, i), child)
	}
}

func (v *validator) order(entries []condition.OrderEntry) {
	for _, o := range entries {
		name, err := mapping.ParseName(o.Field)
		if err != nil {
			v.errorf(o.Field, CodeInvalidMapping, "%v", err)
			continue
		}
		if _, ok := v.targets[name.Base]; !ok {
			v.warnf(o.Field, CodeUnmappedOrder, "no mapping, sort entry is skipped")
		}
	}
}

func setupMessage(err error) string {
	var le *loader.LoadError
	if errors.As(err, &le) {
		return le.Message
	}
	var me *mapping.Error
	if errors.As(err, &me) {
		return me.Message
	}
	return err.Error()
}

func printValidation(f *OutputFormatter, result ValidationResult) {
	w := f.Writer
	if result.Valid {
		fmt.Fprintf(w, "%s Condition is valid for this mapping\n", okMark("✓"))
	} else {
		fmt.Fprintf(w, "%s Validation failed\n", failMark("✗"))
	}
	for _, issue := range result.Issues {
		mark := warnMark("!")
		if issue.Severity == "error" {
			mark = failMark("✗")
		}
		field := issue.Field
		if field == "" {
			field = "mapping"
		}
		fmt.Fprintf(w, "  %s %s [%s]: %s\n", mark, field, issue.Code, issue.Message)
	}
}
