package app

import (
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/prompt-manager/prompt-manager/internal/daemon"
)

func init() { //nolint: gochecknoinits
	rootCmd.AddCommand(importCmd, exportCmd)
}

var (
	importCmd = &cobra.Command{
		Use:   "import <zip>",
		Short: "Import an archive created by export, existing records are skipped",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			return withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				_, err := d.Importer.Import(cmd.Context(), args[0], func(line string) {
					fmt.Fprintln(out, line)
				})

				return err
			})
		},
	}

	exportCmd = &cobra.Command{
		Use:   "export <zip>",
		Short: "Write every image with its files and metadata into a ZIP archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				f, err := os.Create(args[0])
				if err != nil {
					return errors.Wrap(err, "failed to create archive")
				}

				stats, err := d.Exporter.Export(cmd.Context(), f)
				if cerr := f.Close(); err == nil {
					err = cerr
				}

				if err != nil {
					_ = os.Remove(args[0])
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "exported %d images, %d files, %d missing files\n",
					stats.Images, stats.Files, stats.Missing)

				return nil
			})
		},
	}
)
