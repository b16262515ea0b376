package cli

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Environment variables read by the commands. Flags take precedence.
const (
	EnvRedisAddr = "SEARCHGEN_REDIS_ADDR"
	EnvCacheTTL  = "SEARCHGEN_CACHE_TTL"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	EnvFile string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the searchgen CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "searchgen",
		Short: "searchgen - search condition compiler",
		Long: `Compile search conditions into parameterized SQL WHERE clauses
or document-store queries, driven by a field-mapping file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", "", "load environment variables from this file")

	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewKeyCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))

	return cmd
}

// setup validates global flags, loads the env file and configures logging.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	if !isValidFormat(o.Format) {
		return setupError(cmd, WrapExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats), nil))
	}
	if o.EnvFile != "" {
		// Variables already set in the process environment win.
		if err := godotenv.Load(o.EnvFile); err != nil {
			return setupError(cmd, WrapExitError(ExitCommandError, "loading env file", err))
		}
	}

	level := slog.LevelWarn
	if o.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))
	return nil
}

func setupError(cmd *cobra.Command, err *ExitError) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
	return err
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
