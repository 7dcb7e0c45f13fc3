package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/stigc/internal/store"
)

// VersionsOptions holds flags for the versions command.
type VersionsOptions struct {
	*RootOptions
	Registry string
}

// PackageSummary is one registered package with its latest version.
type PackageSummary struct {
	Path    string `json:"path"`
	Latest  int    `json:"latest"`
	BuildID string `json:"build_id"`
}

// NewVersionsCommand creates the versions command.
func NewVersionsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VersionsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "versions [package-path]",
		Short: "List registered package versions",
		Long: `List the packages in a registry, or every version of one package.

Example:
  stigc versions --registry stig.db
  stigc versions --registry stig.db shop/cart`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVersions(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Registry, "registry", "", "path to the SQLite package registry")

	return cmd
}

func runVersions(opts *VersionsOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if opts.Registry == "" {
		cfg, err := findConfig(opts.Config, []string{"."})
		if err != nil {
			return outputError(formatter, ErrCodeConfig, err.Error(), ExitCommandError)
		}
		opts.Registry = cfg.Registry
	}
	if opts.Registry == "" {
		return outputError(formatter, ErrCodeRegistry, "no registry: pass --registry or set registry in "+ConfigFile, ExitCommandError)
	}

	reg, err := store.Open(opts.Registry)
	if err != nil {
		return outputError(formatter, ErrCodeRegistry, err.Error(), ExitCommandError)
	}
	defer func() {
		if closeErr := reg.Close(); closeErr != nil {
			slog.Error("error closing registry", "error", closeErr)
		}
	}()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if len(args) == 1 {
		return listVersions(ctx, reg, args[0], formatter)
	}
	return listPackages(ctx, reg, formatter)
}

func listPackages(ctx context.Context, reg *store.Store, formatter *OutputFormatter) error {
	paths, err := reg.Packages(ctx)
	if err != nil {
		return outputError(formatter, ErrCodeRegistry, err.Error(), ExitCommandError)
	}
	summaries := []PackageSummary{}
	for _, p := range paths {
		e, err := reg.Latest(ctx, p)
		if err != nil {
			return outputError(formatter, ErrCodeRegistry, err.Error(), ExitCommandError)
		}
		summaries = append(summaries, PackageSummary{Path: p, Latest: e.Version, BuildID: e.BuildID})
	}

	if formatter.Format == "json" {
		return formatter.Success(summaries)
	}
	fmt.Fprintf(formatter.Writer, "%d package(s)\n", len(summaries))
	for _, s := range summaries {
		fmt.Fprintf(formatter.Writer, "  %s@v%d  %s\n", s.Path, s.Latest, s.BuildID)
	}
	return nil
}

func listVersions(ctx context.Context, reg *store.Store, path string, formatter *OutputFormatter) error {
	entries, err := reg.Versions(ctx, path)
	if err != nil {
		return outputError(formatter, ErrCodeRegistry, err.Error(), ExitCommandError)
	}
	if len(entries) == 0 {
		return outputError(formatter, ErrCodeNotFound, fmt.Sprintf("%s: %v", path, store.ErrNotFound), ExitFailure)
	}

	if formatter.Format == "json" {
		return formatter.Success(entries)
	}
	fmt.Fprintf(formatter.Writer, "%s: %d version(s)\n", path, len(entries))
	for _, e := range entries {
		fmt.Fprintf(formatter.Writer, "  v%d  %s  %s  compiler %s  %d export(s)\n",
			e.Version, e.BuildID, short(e.SourceHash), e.Compiler, len(e.Manifest.Exports))
		if formatter.Verbose {
			fmt.Fprint(formatter.Writer, indent(e.Manifest.String(), "      "))
		}
	}
	return nil
}

func short(hash string) string {
	if len(hash) > 12 {
		return hash[:12]
	}
	return hash
}

func indent(text, prefix string) string {
	lines := strings.SplitAfter(text, "\n")
	var b strings.Builder
	for _, l := range lines {
		if l != "" {
			b.WriteString(prefix + l)
		}
	}
	return b.String()
}
