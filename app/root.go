// Package app implements the main application commands.
package app

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/prompt-manager/prompt-manager/internal/config"
	"github.com/prompt-manager/prompt-manager/internal/daemon"
	"github.com/prompt-manager/prompt-manager/internal/logger"
)

var (
	configPath string // Path to the configuration directory
	cfg        config.Config

	rootCmd = &cobra.Command{
		Use:   "prompt-manager",
		Short: "Prompt Manager is a self hosted gallery for AI generated images and their prompts",
		Long: `Prompt Manager is a self hosted gallery for AI generated images and their prompts.
Visitors browse and upload, administrators review, tag and back up the collection.`,
		Args:          cobra.OnlyValidArgs,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			var err error
			if cfg, err = config.ReadConfig(configPath); err != nil {
				return err
			}

			return logger.Init(cfg.Log)
		},
	}
)

func init() { //nolint: gochecknoinits
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "./etc/", "Directory containing main.toml")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// withDaemon opens the services for a maintenance command and closes them afterwards.
func withDaemon(ctx context.Context, fn func(d *daemon.Daemon) error) error {
	d, err := daemon.New(ctx, &cfg)
	if err != nil {
		return err
	}

	defer func() { _ = d.Close() }()

	return fn(d)
}
