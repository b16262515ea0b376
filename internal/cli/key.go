package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/searchgen/internal/cache"
)

// KeyOptions holds flags for the key command.
type KeyOptions struct {
	*RootOptions
	InputOptions
}

// KeyResult is the payload of the key command.
type KeyResult struct {
	Backend string `json:"backend"`
	Key     string `json:"key"`
}

// NewKeyCommand creates the key command.
func NewKeyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &KeyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "key",
		Short: "Print the cache key of a condition and mapping",
		Long: `Print the key under which compile --cache stores the result for a
condition and mapping pair. The key changes whenever the condition or
any mapping, conversion or generator option changes.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runKey(opts, cmd)
		},
	}
	opts.addFlags(cmd)
	return cmd
}

func runKey(opts *KeyOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	in, err := opts.load(formatter)
	if err != nil {
		return err
	}

	var sig any
	if in.backend == BackendSQL {
		gen, err := in.sqlGenerator()
		if err != nil {
			return setupFailure(formatter, err)
		}
		sig = gen.Signature()
	} else {
		gen, err := in.documentGenerator()
		if err != nil {
			return setupFailure(formatter, err)
		}
		sig = gen.Signature()
	}
	formatter.VerboseDump("mapping signature", sig)

	key, err := cache.Key(in.backend, in.cond, sig)
	if err != nil {
		return formatter.fail(ExitCommandError, ErrCodeCompile, err.Error(), err)
	}

	if formatter.Format == "json" {
		return formatter.Success(KeyResult{Backend: in.backend, Key: key})
	}
	fmt.Fprintln(formatter.Writer, key)
	return nil
}
