package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/stigc/internal/compiler"
	"github.com/roach88/stigc/internal/store"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	BuildOptions
	Watch bool
	Jobs  int

	// IDs overrides the registry's build id generator (for testing).
	IDs store.IDGenerator
}

// CompiledPackage summarizes one compiled document.
type CompiledPackage struct {
	Source    string             `json:"source"`
	ID        compiler.PackageID `json:"id"`
	Hash      string             `json:"hash"`
	BuildID   string             `json:"build_id,omitempty"`
	Created   bool               `json:"created"`
	Output    string             `json:"output,omitempty"`
	Functions int                `json:"functions"`
	Shared    int                `json:"shared"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	return newCompileCommand(&CompileOptions{RootOptions: rootOpts})
}

func newCompileCommand(opts *CompileOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <path>...",
		Short: "Compile packages to Go source",
		Long: `Compile Stig package documents to Go source.

Each path is a document or a directory searched for documents. With a
registry every package receives a version: an unchanged package keeps its
version, a changed one gets the next. Emitted files are written to
<out-dir>/<package path>/v<version>/.

Example:
  stigc compile --registry stig.db -o gen ./packages
  stigc compile --watch ./packages`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args, cmd)
		},
	}

	opts.addFlags(cmd.Flags())
	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "recompile when a document changes")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 0, "packages compiled in parallel (default GOMAXPROCS)")

	return cmd
}

func runCompile(opts *CompileOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := findConfig(opts.Config, args)
	if err != nil {
		return outputError(formatter, ErrCodeConfig, err.Error(), ExitCommandError)
	}
	if cfg.Path() != "" {
		formatter.VerboseLog("Using config %s", cfg.Path())
	}
	opts.merge(cfg, cmd.Flags())
	if opts.Jobs < 0 {
		return outputError(formatter, ErrCodeGeneric, fmt.Sprintf("invalid --jobs %d", opts.Jobs), ExitCommandError)
	}

	var reg *store.Store
	if opts.Registry != "" {
		var storeOpts []store.Option
		if opts.IDs != nil {
			storeOpts = append(storeOpts, store.WithIDGenerator(opts.IDs))
		}
		reg, err = store.Open(opts.Registry, storeOpts...)
		if err != nil {
			return outputError(formatter, ErrCodeRegistry, err.Error(), ExitCommandError)
		}
		defer func() {
			if closeErr := reg.Close(); closeErr != nil {
				slog.Error("error closing registry", "error", closeErr)
			}
		}()
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	build := func() error {
		return compileOnce(ctx, opts, reg, args, formatter)
	}

	if !opts.Watch {
		return build()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping watch", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	// A failing build is reported and the watch goes on.
	_ = build()
	return Watch(ctx, args, func() { _ = build() }, formatter)
}

// compileOnce compiles every document under paths.
func compileOnce(ctx context.Context, opts *CompileOptions, reg *store.Store, paths []string, formatter *OutputFormatter) error {
	files, err := FindSources(paths)
	if err != nil {
		return outputDiagnostics(formatter, "Compilation failed", Diagnostics(err), ExitCommandError)
	}
	formatter.VerboseLog("Found %d document(s)", len(files))

	sources, loadErrs := LoadSources(files)
	if len(loadErrs) > 0 {
		return outputDiagnostics(formatter, "Compilation failed", loadDiagnostics(loadErrs), ExitCommandError)
	}

	copts := opts.compilerOptions()
	if reg != nil {
		copts.Registry = reg
	}

	// Each package owns its type engine, table and graph, so packages
	// compile concurrently. The registry serializes its own writes.
	results := make([]*compiler.Result, len(sources))
	errs := make([]error, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.jobs())
	for i, src := range sources {
		formatter.VerboseLog("Compiling %s", src.Path)
		g.Go(func() error {
			res, err := compiler.Compile(gctx, src.Package, copts)
			if compiler.IsInternal(err) {
				return err
			}
			results[i], errs[i] = res, err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return outputError(formatter, ErrCodeInternal, err.Error(), ExitCommandError)
	}

	var compiled []CompiledPackage
	var diags []Diagnostic
	for i, src := range sources {
		if errs[i] != nil {
			diags = append(diags, Diagnostics(errs[i])...)
			continue
		}
		res := results[i]
		pkg := CompiledPackage{
			Source:    src.Path,
			ID:        res.ID,
			Hash:      res.Hash,
			BuildID:   res.BuildID,
			Created:   res.Created,
			Functions: res.Codegen.Functions,
			Shared:    res.Codegen.IDs,
		}
		if opts.OutDir != "" {
			var err error
			pkg.Output, err = compiler.WriteFile(opts.OutDir, res)
			if err != nil {
				return outputError(formatter, ErrCodeWriteFailed, err.Error(), ExitCommandError)
			}
		}
		compiled = append(compiled, pkg)
	}

	if len(diags) > 0 {
		return outputDiagnostics(formatter, "Compilation failed", diags, ExitCommandError)
	}
	return outputCompileSuccess(formatter, compiled)
}

func (o *CompileOptions) jobs() int {
	if o.Jobs > 0 {
		return o.Jobs
	}
	return runtime.GOMAXPROCS(0)
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, compiled []CompiledPackage) error {
	if formatter.Format == "json" {
		return formatter.Success(compiled)
	}

	fmt.Fprintf(formatter.Writer, "✓ Compiled %d package(s)\n\n", len(compiled))
	for _, p := range compiled {
		state := "unchanged"
		if p.Created {
			state = "new"
		}
		fmt.Fprintf(formatter.Writer, "  %s (%s): %d function(s), %d shared value(s)\n",
			p.ID, state, p.Functions, p.Shared)
		if p.Output != "" {
			fmt.Fprintf(formatter.Writer, "    wrote %s\n", p.Output)
		}
	}
	return nil
}

// outputError outputs a single error and returns it with the exit code.
func outputError(formatter *OutputFormatter, code, message string, exit int) error {
	_ = formatter.Error(code, message, nil)
	return WrapExitError(exit, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputDiagnostics outputs diagnostics and returns an error with the exit
// code.
func outputDiagnostics(formatter *OutputFormatter, headline string, diags []Diagnostic, exit int) error {
	if err := formatter.Diagnostics(headline, diags); err != nil {
		return err
	}
	return NewExitError(exit, fmt.Sprintf("%s with %d error(s)", headline, len(diags)))
}
