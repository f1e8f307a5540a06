package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/23skdu/longbow-kernelwriter/internal/config"
	"github.com/23skdu/longbow-kernelwriter/internal/logger"
	"github.com/23skdu/longbow-kernelwriter/internal/manifest"
	"github.com/23skdu/longbow-kernelwriter/internal/recipe"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

type genOptions struct {
	cfg          config.Config
	out          string
	manifestPath string
	dumpMetrics  bool
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ckw",
		Short:        "Generate OpenCL kernels from tile programs",
		SilenceUsage: true,
	}
	root.AddCommand(newListCmd(), newGenCmd())
	return root
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the available recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range recipe.Names() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newGenCmd() *cobra.Command {
	opts := genOptions{cfg: config.Default()}
	cmd := &cobra.Command{
		Use:       "gen <recipe>",
		Short:     "Generate the kernel source of a recipe",
		Args:      cobra.ExactArgs(1),
		ValidArgs: recipe.Names(),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGen(cmd.OutOrStdout(), args[0], opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.out, "out", "", "Write the kernel source to this file instead of stdout")
	f.StringVar(&opts.manifestPath, "manifest", "", "Write the argument manifest (Arrow IPC) to this file")
	f.StringVar(&opts.cfg.Writer.KernelName, "kernel-name", opts.cfg.Writer.KernelName, "Kernel function name")
	f.Int32Var(&opts.cfg.Writer.IDSpace, "id-space", opts.cfg.Writer.IDSpace, "Initial id space used to qualify names")
	f.BoolVar(&opts.cfg.Writer.ReturnDimsByValue, "dims-by-value", false, "Fold static tensor dims into literals")
	f.BoolVar(&opts.cfg.Writer.EmitComments, "comments", false, "Emit source comments")
	f.Int32Var(&opts.cfg.Writer.TileHeight, "tile-height", opts.cfg.Writer.TileHeight, "Rows per work-item tile")
	f.StringVar(&opts.cfg.LogLevel, "log-level", opts.cfg.LogLevel, "Log level (debug, info, warn, error)")
	f.StringVar(&opts.cfg.LogFormat, "log-format", opts.cfg.LogFormat, "Log format (console, json)")
	f.BoolVar(&opts.dumpMetrics, "dump-metrics", false, "Print writer metrics to stderr after generation")
	return cmd
}

func runGen(stdout io.Writer, name string, opts genOptions) error {
	if err := opts.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	logger.Setup(opts.cfg.LogLevel, opts.cfg.LogFormat)

	k, err := recipe.Build(name, opts.cfg.Writer)
	if err != nil {
		logger.Log.Error("kernel generation failed", "recipe", name, "error", err)
		return err
	}

	if opts.out == "" {
		if _, err := io.WriteString(stdout, k.SourceCode); err != nil {
			return fmt.Errorf("failed to write kernel source: %w", err)
		}
	} else if err := os.WriteFile(opts.out, []byte(k.SourceCode), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.out, err)
	}

	if opts.manifestPath != "" {
		f, err := os.Create(opts.manifestPath)
		if err != nil {
			return fmt.Errorf("failed to create manifest: %w", err)
		}
		if err := manifest.Write(f, opts.cfg.Writer.KernelName, k); err != nil {
			f.Close()
			return err
		}
		if err := f.Close(); err != nil {
			return fmt.Errorf("failed to close manifest: %w", err)
		}
	}

	logger.Log.Info("kernel generated",
		"recipe", name,
		"kernel", opts.cfg.Writer.KernelName,
		"arguments", len(k.Arguments),
		"bytes", len(k.SourceCode))

	if opts.dumpMetrics {
		return dumpMetrics(os.Stderr)
	}
	return nil
}

// dumpMetrics writes the writer's own collectors in the text exposition format.
func dumpMetrics(w io.Writer) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	for _, mf := range lo.Filter(families, func(mf *dto.MetricFamily, _ int) bool {
		return strings.HasPrefix(mf.GetName(), "kernelwriter_")
	}) {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}
