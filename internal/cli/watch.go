package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"availgrid/internal/compiler"
	"availgrid/internal/config"
	appLog "availgrid/internal/log"
	"availgrid/internal/metrics"
)

func newWatchCmd(o *options) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Regenerate the schedule document on the configured cron schedule",
		Long: `Stay in the foreground and regenerate the schedule document whenever the
config's refresh cron spec fires (default: daily at 06:00 in the owner's
timezone). A run that is still going when the next one is due is skipped.

Stops on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd.Context(), o, runNow)
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "generate once immediately before waiting for the schedule")
	return cmd
}

func runWatch(ctx context.Context, o *options, runNow bool) error {
	cfg, err := loadConfig(o)
	if err != nil {
		return err
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return fmt.Errorf("%w: timezone %q: %v", config.ErrInvalid, cfg.Timezone, err)
	}

	c, err := compiler.New(cfg, compiler.NewFetcher(cfg), compiler.WithHorizonWeeks(o.horizonWeeks))
	if err != nil {
		return err
	}
	sources := compiler.Sources(cfg)
	rec := metrics.New()

	// Each run gets its own run ID from the compiler.
	job := func() {
		if rep, err := runOnce(ctx, c, cfg, sources, rec); err != nil {
			appLog.Error("watch: run failed; previous document kept", err, "run_id", rep.RunID)
		}
	}

	logger := cronLogger{}
	sched := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	id, err := sched.AddFunc(cfg.Refresh, job)
	if err != nil {
		return fmt.Errorf("%w: refresh %q: %v", config.ErrInvalid, cfg.Refresh, err)
	}

	if runNow {
		job()
	}

	sched.Start()
	appLog.Info("watch started",
		"refresh", cfg.Refresh,
		"next_run", sched.Entry(id).Next.Format(time.RFC3339),
	)

	<-ctx.Done()

	stopped := sched.Stop()
	<-stopped.Done()
	appLog.Info("watch stopped")
	return nil
}
