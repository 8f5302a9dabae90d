package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/ironsheep/annodiff/internal/compare"
	"github.com/ironsheep/annodiff/internal/config"
	"github.com/ironsheep/annodiff/internal/dataset"
	"github.com/ironsheep/annodiff/internal/logger"
	"github.com/ironsheep/annodiff/internal/metrics"
	"github.com/ironsheep/annodiff/internal/render"
	"github.com/ironsheep/annodiff/internal/report"
	"github.com/ironsheep/annodiff/internal/telemetry"
)

var diffCmd = &cobra.Command{
	Use:   "diff <other-dataset>",
	Short: "Compare the project dataset with another dataset",
	Long: `diff compares the project dataset (-p, default the current directory) with
another dataset. A dataset is a manifest file (YAML or JSON), a directory
containing dataset.yaml, or a Redis location written by "annodiff publish"
(redis://host:6379/0?dataset=name).

The project dataset is the reference (ground truth) unless --reference second
is given. Candidate annotations scored below --conf-thresh are ignored;
annotations overlapping less than --iou-thresh are not paired.

Settings may also come from ANNODIFF_* environment variables (for example
ANNODIFF_IOU_THRESH) and a YAML file passed with --config. Flags take
precedence over the environment, which takes precedence over the file.

Exit status is 2 for invalid settings (including label vocabularies that
cannot be reconciled) and 1 for other failures. Items that
could not be read are listed on stderr; the run still succeeds if at least
one item was compared.`,
	Args: cobra.ExactArgs(1),
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
	addDiffFlags(diffCmd.Flags())
}

func addDiffFlags(f *pflag.FlagSet) {
	f.StringP("project", "p", ".", "Project dataset: manifest file, directory or redis:// URL")
	f.StringP("dest", "d", "", "Destination directory (required for overlay, chart and sqlite)")
	f.StringP("output-format", "f", "text", "Output format: "+strings.Join(render.Formats(), ", "))
	f.Float64("iou-thresh", compare.DefaultIoUThreshold, "Minimum overlap for two annotations to be paired")
	f.Float64("conf-thresh", compare.DefaultConfThreshold, "Ignore candidate annotations scored below this")
	f.String("reference", "first", "Which dataset is ground truth: first (the project) or second")
	f.String("strategy", "greedy", "Pairing strategy: greedy or optimal")
	f.Bool("groups", false, "Report partially matched annotation groups")
	f.Int("workers", 0, "Items compared concurrently (0 uses the number of CPUs)")
	f.Duration("item-timeout", 0, "Give up on an item after this long and report it skipped (0 disables)")
	f.Bool("overwrite", false, "Allow writing into a non-empty destination")
	f.StringToString("label-map", nil, "Map candidate label names to reference names (cat=feline,...)")
	f.String("config", "", "YAML config file")
	f.String("metrics-file", "", "Write Prometheus metrics for the run to this file (node_exporter textfile format)")
	f.String("otlp-endpoint", "", "Export trace spans to this OTLP/HTTP endpoint")
	f.Int("max-edge", render.DefaultMaxEdge, "Shrink overlay images whose longer edge exceeds this many pixels (0 keeps the source size)")
}

func runDiff(cmd *cobra.Command, args []string) error {
	v := viper.New()
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return err
	}
	configFile, err := cmd.Flags().GetString("config")
	if err != nil {
		return err
	}
	cfg, err := config.Load(v, configFile)
	if err != nil {
		return err
	}
	if cfg.Verbose {
		logger.SetVerbose(true)
	}

	format, err := render.ParseFormat(cfg.Format)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	first, err := dataset.Open(ctx, cfg.Project)
	if err != nil {
		return fmt.Errorf("project dataset: %w", err)
	}
	defer dataset.Close(first)
	second, err := dataset.Open(ctx, args[0])
	if err != nil {
		return fmt.Errorf("dataset %s: %w", args[0], err)
	}
	defer dataset.Close(second)

	shutdown, err := telemetry.Setup(ctx, cfg.OTLPEndpoint, GetVersion())
	if err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	defer shutdown(context.Background())

	log := logger.Component("diff")
	c, err := compare.New(cfg.ComparatorOptions(log)...)
	if err != nil {
		return err
	}
	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	rep, cmpErr := c.Compare(runCtx, first, second)
	if cfg.MetricsFile != "" {
		rec := metrics.NewRecorder()
		rec.ObserveRun(rep, cmpErr, time.Since(start))
		if err := rec.WriteTextfile(cfg.MetricsFile); err != nil {
			log.Warn("failed to write metrics", "file", cfg.MetricsFile, "error", err)
		}
	}
	if rep == nil {
		return cmpErr
	}

	opts := []render.Option{
		render.WithStdout(cmd.OutOrStdout()),
		render.WithOverwrite(cfg.Overwrite),
		render.WithMaxEdge(cfg.MaxEdge),
		render.WithLogger(log),
	}
	if cfg.Workers > 0 {
		opts = append(opts, render.WithWorkers(cfg.Workers))
	}
	// A cancelled comparison still renders what it has.
	if err := render.New(opts...).Render(ctx, rep, format, cfg.Dest); err != nil {
		return err
	}

	printFailures(cmd.ErrOrStderr(), rep)
	return cmpErr
}

// printFailures lists items that could not be compared.
func printFailures(w io.Writer, rep *report.DiffReport) {
	if len(rep.Failures) == 0 {
		return
	}
	fmt.Fprintf(w, "%d of %d items could not be compared:\n", len(rep.Failures), rep.Totals.Items)
	for _, id := range rep.ItemIDs() {
		if it := rep.Items[id]; it.Error != "" {
			fmt.Fprintf(w, "  %s (%s): %s\n", it.ID, it.Status, it.Error)
		}
	}
}
