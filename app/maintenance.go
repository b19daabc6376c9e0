package app

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/prompt-manager/prompt-manager/internal/daemon"
	"github.com/prompt-manager/prompt-manager/internal/maintenance"
)

// errNotConfirmed stops clear without --yes.
var errNotConfirmed = errors.New("refusing to delete every image without --yes")

func init() { //nolint: gochecknoinits
	repairCmd.Flags().StringVar(&repair.Status, "status", "approved", `Status filter, "*" selects every status`)
	repairCmd.Flags().UintSliceVar(&repairIDs, "ids", nil, "Only these image ids")
	repairCmd.Flags().IntVar(&repair.Limit, "limit", 0, "Maximum number of images, 0 means all")
	repairCmd.Flags().IntVar(&repair.ThumbSize, "thumb-size", 0, "Thumbnail edge in pixels, defaults to the setting")
	repairCmd.Flags().IntVar(&repair.Quality, "quality", 0, "JPEG quality, defaults to the setting")
	repairCmd.Flags().BoolVar(&repair.Force, "force", false, "Regenerate thumbnails that look valid")
	repairCmd.Flags().BoolVar(&repair.DryRun, "dry-run", false, "Report without writing")

	clearCmd.Flags().BoolVar(&clearConfirmed, "yes", false, "Confirm deleting every image")

	rootCmd.AddCommand(lqipCmd, repairCmd, clearCmd)
}

var (
	repair         maintenance.RepairOptions
	repairIDs      []uint
	clearConfirmed bool

	lqipCmd = &cobra.Command{
		Use:   "lqip",
		Short: "Generate placeholders for images without one",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			return withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				stats, err := d.Maintenance.BackfillPlaceholders(cmd.Context(), func(line string) {
					fmt.Fprintln(out, line)
				})
				if err != nil {
					return err
				}

				fmt.Fprintf(out, "done: %d success, %d failed\n", stats.Success, stats.Failed)

				return nil
			})
		},
	}

	repairCmd = &cobra.Command{
		Use:   "repair-thumbnails",
		Short: "Regenerate missing or broken thumbnails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()

			opts := repair
			for _, id := range repairIDs {
				opts.IDs = append(opts.IDs, uint64(id))
			}

			return withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				stats, err := d.Maintenance.RepairThumbnails(cmd.Context(), opts, func(line string) {
					fmt.Fprintln(out, line)
				})
				if err != nil {
					return err
				}

				fmt.Fprintf(out,
					"scanned=%d updated=%d unchanged=%d missing_source=%d remote_skipped=%d errors=%d\n",
					stats.Scanned, stats.Updated, stats.Unchanged, stats.MissingSource, stats.RemoteSkipped, stats.Errors)

				return nil
			})
		},
	}

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Delete every image with its files and the tags left without images",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !clearConfirmed {
				return errNotConfirmed
			}

			return withDaemon(cmd.Context(), func(d *daemon.Daemon) error {
				stats, err := d.Maintenance.Clear(cmd.Context())
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d images and %d tags\n", stats.Images, stats.Tags)

				return nil
			})
		},
	}
)
