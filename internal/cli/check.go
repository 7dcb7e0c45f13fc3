package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stigc/internal/compiler"
	"github.com/roach88/stigc/internal/symbol"
)

// CheckedPackage summarizes one checked document.
type CheckedPackage struct {
	Source      string                `json:"source"`
	Path        string                `json:"path"`
	Definitions int                   `json:"definitions"`
	Schedule    symbol.Stats          `json:"schedule"`
	Cycles      []symbol.CycleWarning `json:"cycles,omitempty"`
}

// NewCheckCommand creates the check command.
func NewCheckCommand(rootOpts *RootOptions) *cobra.Command {
	var maxPasses int

	cmd := &cobra.Command{
		Use:   "check <path>...",
		Short: "Check packages without generating code",
		Long: `Check Stig package documents without emitting Go source.

Runs synthesis and resolution and reports every error found, sorted by
position. Faster than compile for development feedback.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(rootOpts, maxPasses, args, cmd)
		},
	}

	cmd.Flags().IntVar(&maxPasses, "max-passes", 0, "resolution pass limit")

	return cmd
}

func runCheck(opts *RootOptions, maxPasses int, args []string, cmd *cobra.Command) error {
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
	if !cmd.Flags().Changed("max-passes") {
		maxPasses = cfg.MaxPasses
	}

	files, err := FindSources(args)
	if err != nil {
		return outputDiagnostics(formatter, "Check failed", Diagnostics(err), ExitCommandError)
	}
	sources, loadErrs := LoadSources(files)
	diags := loadDiagnostics(loadErrs)

	var checked []CheckedPackage
	for _, src := range sources {
		formatter.VerboseLog("Checking %s", src.Path)
		u, err := compiler.Check(src.Package, compiler.Options{MaxPasses: maxPasses})
		if compiler.IsInternal(err) {
			return outputError(formatter, ErrCodeInternal, err.Error(), ExitCommandError)
		}
		if err != nil {
			diags = append(diags, Diagnostics(err)...)
			continue
		}
		checked = append(checked, CheckedPackage{
			Source:      src.Path,
			Path:        u.Path,
			Definitions: len(u.Defs()),
			Schedule:    u.Schedule,
			Cycles:      u.Cycles,
		})
	}

	if len(diags) > 0 {
		return outputDiagnostics(formatter, "Check failed", diags, ExitFailure)
	}
	return outputCheckSuccess(formatter, checked)
}

func outputCheckSuccess(formatter *OutputFormatter, checked []CheckedPackage) error {
	if formatter.Format == "json" {
		return formatter.Success(checked)
	}

	fmt.Fprintf(formatter.Writer, "✓ Checked %d package(s)\n\n", len(checked))
	for _, p := range checked {
		fmt.Fprintf(formatter.Writer, "  %s: %d definition(s), %d pass(es), %d build step(s)\n",
			p.Path, p.Definitions, p.Schedule.Passes, p.Schedule.Invocations)
		for _, c := range p.Cycles {
			fmt.Fprintf(formatter.Writer, "    ⚠ %s: %s\n", strings.Join(c.Path, " -> "), c.Message)
		}
	}
	return nil
}
