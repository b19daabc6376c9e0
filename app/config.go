package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prompt-manager/prompt-manager/internal/config"
)

func init() { //nolint: gochecknoinits
	dumpConfigCmd.Flags().BoolVar(&dumpJSON, "json", false, "Print JSON instead of TOML")

	rootCmd.AddCommand(dumpConfigCmd)
}

var (
	dumpJSON bool

	dumpConfigCmd = &cobra.Command{
		Use:   "dump-config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dump := config.DumpConfig
			if dumpJSON {
				dump = config.DumpConfigJSON
			}

			out, err := dump(&cfg)
			if err != nil {
				return err
			}

			fmt.Fprint(cmd.OutOrStdout(), out)

			return nil
		},
	}
)
