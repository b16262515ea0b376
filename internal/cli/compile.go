package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/searchgen/internal/cache"
	"github.com/roach88/searchgen/internal/docgen"
	"github.com/roach88/searchgen/internal/sqlgen"
)

// Cache modes selectable with --cache.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	InputOptions
	Prefix    string
	Cache     string
	TTL       time.Duration
	RedisAddr string
}

// CompileResult is the payload of a successful compile.
type CompileResult struct {
	Backend string         `json:"backend"`
	Key     string         `json:"key,omitempty"`
	Clause  *sqlgen.Clause `json:"clause,omitempty"`
	Query   docgen.Query   `json:"query,omitempty"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile",
		Short: "Compile a search condition for a backend",
		Long: `Compile a search condition fixture against a field mapping file.

The sql backend prints a parameterized WHERE clause with its named
parameters and ORDER BY entries. The document backend prints the query
structure as JSON. With --cache the result is stored under a key derived
from the condition and the mapping.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(cmd.Context(), opts, cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVarP(&opts.Prefix, "prefix", "p", "", `prefix for a non-empty SQL clause (e.g. "WHERE ")`)
	cmd.Flags().StringVar(&opts.Cache, "cache", CacheNone, "cache store (none|memory|redis)")
	cmd.Flags().DurationVar(&opts.TTL, "ttl", cache.DefaultTTL, "cache entry lifetime (env "+EnvCacheTTL+")")
	cmd.Flags().StringVar(&opts.RedisAddr, "redis-addr", "", "redis address for --cache redis (env "+EnvRedisAddr+")")

	return cmd
}

func runCompile(ctx context.Context, opts *CompileOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	if err := opts.resolveEnv(cmd); err != nil {
		return formatter.fail(ExitCommandError, ErrCodeUsage, err.Error(), err)
	}
	switch opts.Cache {
	case CacheNone, CacheMemory, CacheRedis:
	default:
		return formatter.fail(ExitCommandError, ErrCodeUsage,
			fmt.Sprintf("invalid cache %q: must be one of none, memory, redis", opts.Cache), nil)
	}

	in, err := opts.load(formatter)
	if err != nil {
		return err
	}

	result := &CompileResult{Backend: in.backend}
	if in.backend == BackendSQL {
		err = compileSQL(ctx, opts, in, formatter, result)
	} else {
		err = compileDocument(ctx, opts, in, formatter, result)
	}
	if err != nil {
		return err
	}

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return printCompileResult(formatter, result)
}

// resolveEnv fills flags left at their defaults from the environment.
func (o *CompileOptions) resolveEnv(cmd *cobra.Command) error {
	if !cmd.Flags().Changed("ttl") {
		if v := strings.TrimSpace(os.Getenv(EnvCacheTTL)); v != "" {
			ttl, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", EnvCacheTTL, err)
			}
			o.TTL = ttl
		}
	}
	if o.RedisAddr == "" {
		o.RedisAddr = strings.TrimSpace(os.Getenv(EnvRedisAddr))
	}
	if o.Cache == CacheRedis && o.RedisAddr == "" {
		return fmt.Errorf("--cache redis needs --redis-addr or %s", EnvRedisAddr)
	}
	return nil
}

func compileSQL(ctx context.Context, opts *CompileOptions, in *inputs, f *OutputFormatter, result *CompileResult) error {
	gen, err := in.sqlGenerator()
	if err != nil {
		return setupFailure(f, err)
	}

	var clause sqlgen.Clause
	if opts.Cache == CacheNone {
		clause, err = gen.Compile(opts.Prefix)
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeCompile, err.Error(), err)
		}
		result.Clause = &clause
		return nil
	}

	store, closeStore, err := openStore[sqlgen.Clause](ctx, opts)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeCache, err.Error(), err)
	}
	defer closeStore()

	cached, err := cache.NewSQL(gen, store, cache.WithTTL(opts.TTL))
	if err != nil {
		return setupFailure(f, err)
	}
	if result.Key, err = cached.Key(); err != nil {
		return f.fail(ExitCommandError, ErrCodeCompile, err.Error(), err)
	}
	f.VerboseLog("Cache key %s (%s, ttl %s)", result.Key, opts.Cache, opts.TTL)

	clause, err = cached.Compile(ctx, opts.Prefix)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeCompile, err.Error(), err)
	}
	result.Clause = &clause
	return nil
}

func compileDocument(ctx context.Context, opts *CompileOptions, in *inputs, f *OutputFormatter, result *CompileResult) error {
	gen, err := in.documentGenerator()
	if err != nil {
		return setupFailure(f, err)
	}

	if opts.Cache == CacheNone {
		q, err := gen.Compile()
		if err != nil {
			return f.fail(ExitCommandError, ErrCodeCompile, err.Error(), err)
		}
		result.Query = q
		logUsedMappings(f, gen.UsedMappings())
		return nil
	}

	store, closeStore, err := openStore[docgen.Query](ctx, opts)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeCache, err.Error(), err)
	}
	defer closeStore()

	cached, err := cache.New[docgen.Query](gen, store, cache.WithTTL(opts.TTL))
	if err != nil {
		return setupFailure(f, err)
	}
	if result.Key, err = cached.Key(); err != nil {
		return f.fail(ExitCommandError, ErrCodeCompile, err.Error(), err)
	}
	f.VerboseLog("Cache key %s (%s, ttl %s)", result.Key, opts.Cache, opts.TTL)

	q, err := cached.Compile(ctx)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeCompile, err.Error(), err)
	}
	result.Query = q
	// A hit never reaches gen.Compile, so UsedMappings would be empty.
	logUsedMappings(f, gen.ResolveUsedMappings())
	return nil
}

func logUsedMappings(f *OutputFormatter, used []docgen.UsedMapping) {
	for _, u := range used {
		f.VerboseLog("Used mapping %s -> %s", u.Field, u.Target)
	}
}

// openStore builds the store selected by --cache. The returned func
// releases it.
func openStore[T any](ctx context.Context, opts *CompileOptions) (cache.Store[T], func(), error) {
	if opts.Cache == CacheMemory {
		return cache.NewMemoryStore[T](), func() {}, nil
	}

	client, err := cache.DialRedis(ctx, opts.RedisAddr)
	if err != nil {
		return nil, nil, err
	}
	store, err := cache.NewRedisStore[T](client)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return store, func() { _ = client.Close() }, nil
}

func printCompileResult(f *OutputFormatter, result *CompileResult) error {
	w := f.Writer
	fmt.Fprintf(w, "%s Compiled for %s backend\n", okMark("✓"), result.Backend)
	if result.Key != "" {
		fmt.Fprintf(w, "  key: %s\n", result.Key)
	}
	fmt.Fprintln(w)

	if result.Clause != nil {
		c := result.Clause
		if c.Empty() {
			fmt.Fprintln(w, dimText("(no condition)"))
		} else {
			fmt.Fprintln(w, c.SQL)
		}
		if order := c.OrderByClause(); order != "" {
			fmt.Fprintln(w, order)
		}
		if len(c.Params) > 0 {
			fmt.Fprintln(w)
			fmt.Fprintln(w, "Parameters:")
			for _, p := range c.Params {
				if p.Type != "" {
					fmt.Fprintf(w, "  %s = %s (%s)\n", p.Name, paramText(p.Value), p.Type)
				} else {
					fmt.Fprintf(w, "  %s = %s\n", p.Name, paramText(p.Value))
				}
			}
		}
		return nil
	}

	data, err := json.MarshalIndent(result.Query, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(w, string(data))
	return nil
}

func paramText(v any) string {
	switch v := v.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case time.Time:
		return v.Format(time.RFC3339Nano)
	case nil:
		return "NULL"
	}
	return fmt.Sprint(v)
}
