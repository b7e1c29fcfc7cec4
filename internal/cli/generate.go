package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"availgrid/internal/compiler"
	"availgrid/internal/config"
	"availgrid/internal/ics"
	appLog "availgrid/internal/log"
	"availgrid/internal/metrics"
)

func newGenerateCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Fetch all feeds once and write the schedule document",
		Long: `Fetch all feeds once and write the schedule document.

Unreachable feeds, broken documents and malformed events are logged and left
out; the document is still written from whatever could be read. A bad config
file fails the run and leaves the previous document in place.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd.Context(), o)
		},
	}
}

func runGenerate(ctx context.Context, o *options) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}

	c, err := compiler.New(cfg, compiler.NewFetcher(cfg), compiler.WithHorizonWeeks(o.horizonWeeks))
	if err != nil {
		return err
	}

	rep, err := runOnce(ctx, c, cfg, compiler.Sources(cfg), metrics.New())
	if err != nil {
		appLog.Error("generate failed", err, "run_id", rep.RunID)
		return err
	}
	return nil
}

// runOnce compiles and writes the document, then refreshes the metrics
// file when one is configured. A metrics write failure is only logged.
func runOnce(ctx context.Context, c *compiler.Compiler, cfg *config.Config, sources []ics.Source, rec *metrics.Recorder) (compiler.Report, error) {
	start := time.Now()
	rep, err := c.Run(ctx, sources, cfg.Output)

	if cfg.MetricsFile != "" {
		rec.Observe(rep, time.Since(start), err, time.Now())
		if werr := rec.WriteTextfile(cfg.MetricsFile); werr != nil {
			appLog.Warn("metrics write failed", werr, "run_id", rep.RunID, "path", cfg.MetricsFile)
		}
	}
	return rep, err
}
