package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/searchgen/internal/condition"
	"github.com/roach88/searchgen/internal/docgen"
	"github.com/roach88/searchgen/internal/loader"
	"github.com/roach88/searchgen/internal/sqlgen"
)

// Backends selectable with --backend.
const (
	BackendSQL      = sqlgen.Kind
	BackendDocument = docgen.Kind
)

// InputOptions are the flags of commands that read a mapping file and a
// condition fixture.
type InputOptions struct {
	Mapping   string
	Condition string
	Backend   string
}

func (o *InputOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&o.Mapping, "mapping", "m", "", "field mapping file (.yaml or .cue)")
	cmd.Flags().StringVarP(&o.Condition, "condition", "c", "", "search condition file (.yaml or .cue)")
	cmd.Flags().StringVarP(&o.Backend, "backend", "b", BackendSQL, "target backend (sql|document)")
	_ = cmd.MarkFlagRequired("mapping")
	_ = cmd.MarkFlagRequired("condition")
}

// inputs is a loaded mapping and condition pair.
type inputs struct {
	backend string
	mapping *loader.MappingFile
	cond    *condition.SearchCondition
}

// load reads both files. Failures are reported through f.
func (o *InputOptions) load(f *OutputFormatter) (*inputs, error) {
	if o.Backend != BackendSQL && o.Backend != BackendDocument {
		return nil, f.fail(ExitCommandError, ErrCodeUsage,
			fmt.Sprintf("invalid backend %q: must be %s or %s", o.Backend, BackendSQL, BackendDocument), nil)
	}

	mf, err := loader.LoadMappings(o.Mapping)
	if err != nil {
		return nil, loadFailure(f, err)
	}
	f.VerboseLog("Loaded %d field mapping(s) from %s", len(mf.Fields), o.Mapping)

	cond, err := loader.LoadCondition(o.Condition)
	if err != nil {
		return nil, loadFailure(f, err)
	}
	f.VerboseDump("condition", cond)

	return &inputs{backend: o.Backend, mapping: mf, cond: cond}, nil
}

func loadFailure(f *OutputFormatter, err error) error {
	var le *loader.LoadError
	if errors.As(err, &le) {
		return f.fail(ExitCommandError, le.Code, le.Error(), err)
	}
	return f.fail(ExitCommandError, ErrCodeGeneric, err.Error(), err)
}

func (in *inputs) sqlGenerator() (*sqlgen.Generator, error) {
	gen, err := sqlgen.New(in.cond, in.mapping.SQLOptions()...)
	if err != nil {
		return nil, err
	}
	if err := in.mapping.ApplySQL(gen, loader.SQLConversions()); err != nil {
		return nil, err
	}
	return gen, nil
}

func (in *inputs) documentGenerator() (*docgen.Generator, error) {
	gen, err := docgen.New(in.cond, in.mapping.DocumentOptions()...)
	if err != nil {
		return nil, err
	}
	if err := in.mapping.ApplyDocument(gen, loader.DocumentConversions()); err != nil {
		return nil, err
	}
	return gen, nil
}

// setupFailure reports a generator construction error.
func setupFailure(f *OutputFormatter, err error) error {
	var le *loader.LoadError
	if errors.As(err, &le) {
		return f.fail(ExitCommandError, le.Code, le.Message, err)
	}
	return f.fail(ExitCommandError, ErrCodeSetup, err.Error(), err)
}
