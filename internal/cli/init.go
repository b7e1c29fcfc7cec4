package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"availgrid/internal/config"
	appLog "availgrid/internal/log"
)

type initOptions struct {
	owner    string
	timezone string
	force    bool
}

func newInitCmd(o *options) *cobra.Command {
	iopts := &initOptions{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Long: `Write a starter config file at --config with default workday hours and
refresh schedule. Feed URLs are not written; set ICS_URLS in the environment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(o, iopts)
		},
	}
	cmd.Flags().StringVar(&iopts.owner, "owner", "", "name shown on the availability page")
	cmd.Flags().StringVar(&iopts.timezone, "timezone", "UTC", "IANA timezone of the owner")
	cmd.Flags().BoolVar(&iopts.force, "force", false, "overwrite an existing config file")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}

func runInit(o *options, iopts *initOptions) error {
	if !iopts.force {
		if _, err := os.Stat(o.configPath); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", o.configPath)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}

	cfg := config.DefaultConfig()
	cfg.OwnerName = iopts.owner
	cfg.Timezone = iopts.timezone
	if o.output != "" {
		cfg.Output = o.output
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := cfg.Save(o.configPath); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	appLog.Info("config written", "path", o.configPath)
	return nil
}
