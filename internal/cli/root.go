// Package cli wires the availgrid commands.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"availgrid/internal/compiler"
	"availgrid/internal/config"
	appLog "availgrid/internal/log"
)

const version = "0.1.0"

// options are the flags shared by generate and watch.
type options struct {
	configPath   string
	output       string
	horizonWeeks int
}

// NewRootCmd builds the command tree. Running the root command without a
// subcommand is the same as `availgrid generate`.
func NewRootCmd() *cobra.Command {
	o := &options{}

	root := &cobra.Command{
		Use:   "availgrid",
		Short: "Compile ICS feeds into a weekly availability grid",
		Long: `availgrid fetches one or more ICS calendar feeds, expands recurring events,
merges everything busy into one timeline and writes a schedule document
showing which workday hours are taken. Event titles and details are never
read into the output.

Feed URLs come from ICS_URLS (comma separated) or, for local testing,
icsUrls in the config file.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return setupLogging()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runGenerate(cmd.Context(), o)
		},
	}

	root.PersistentFlags().StringVarP(&o.configPath, "config", "c", "config.yaml", "path to the config file (YAML or JSON)")
	root.PersistentFlags().StringVarP(&o.output, "output", "o", "", "schedule document path (overrides config output)")
	root.PersistentFlags().IntVar(&o.horizonWeeks, "horizon-weeks", compiler.DefaultHorizonWeeks, "number of weeks covered by the grid")

	root.AddCommand(newGenerateCmd(o), newWatchCmd(o), newInitCmd(o))
	return root
}

// ExecuteContext runs the command tree with args taken from os.Args.
func ExecuteContext(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func setupLogging() error {
	env, err := config.LoadEnv()
	if err != nil {
		return err
	}
	appLog.Init(appLog.Options{Level: env.LogLevel, Format: env.LogFormat})
	return nil
}

// loadConfig reads the config file, applies the environment overlay and
// command-line overrides.
func loadConfig(o *options) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	env, err := config.LoadEnv()
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(env)
	if o.output != "" {
		cfg.Output = o.output
	}

	appLog.Info("effective config",
		"config_path", o.configPath,
		"timezone", cfg.Timezone,
		"workday_start", cfg.WorkdayStart,
		"workday_end", cfg.WorkdayEnd,
		"horizon_weeks", o.horizonWeeks,
		"ics_count", len(cfg.FeedURLs()),
		"output", cfg.Output,
	)
	return cfg, nil
}

// ExitCode maps an error returned by the command tree to a process exit
// status: 2 for configuration errors, 1 for anything else.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, config.ErrInvalid):
		return 2
	default:
		return 1
	}
}
