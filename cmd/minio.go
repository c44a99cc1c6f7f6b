package cmd

import (
	"fmt"

	"tunemux/model"
	"tunemux/storage"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var (
	mirrorSource string
	mirrorStats  bool
	mirrorPrune  bool
)

var mirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Mirror offline audio into a MinIO bucket",
	Long: `Upload every downloaded track missing from the configured MinIO bucket.
With --prune, objects whose download was deleted locally are removed as well.
With --stats, only a summary of the bucket is printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		fmt.Fprintf(cmd.OutOrStdout(), "minio: %s, bucket: %s\n", cfg.MinioEndpoint, cfg.MinioBucket)

		client, err := storage.NewMinioClient(cfg)
		if err != nil {
			return err
		}
		m := storage.NewMirror(client, cfg.MinioBucket, cfg.MinioRegion)
		if err := m.EnsureBucket(ctx); err != nil {
			return err
		}

		if mirrorStats {
			stats, err := m.Stats(ctx, model.Source(mirrorSource))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d objects, %s", stats.TotalObjects, humanize.Bytes(uint64(stats.TotalSize)))
			if !stats.LastModified.IsZero() {
				fmt.Fprintf(cmd.OutOrStdout(), ", last upload %s", humanize.Time(stats.LastModified))
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		}

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := m.Sync(ctx, a.store, mirrorPrune)
		fmt.Fprintf(cmd.OutOrStdout(), "uploaded %d, skipped %d, removed %d\n", res.Uploaded, res.Skipped, res.Removed)
		return err
	},
}

func init() {
	rootCmd.AddCommand(mirrorCmd)

	mirrorCmd.Flags().StringVarP(&mirrorSource, "source", "s", "", "limit --stats to one source")
	mirrorCmd.Flags().BoolVar(&mirrorStats, "stats", false, "print bucket statistics")
	mirrorCmd.Flags().BoolVarP(&mirrorPrune, "prune", "p", false, "remove objects with no local download")

	mirrorCmd.Example = `  # upload missing downloads
  tunemux mirror

  # upload and drop objects deleted locally
  tunemux mirror --prune

  # bucket statistics for one source
  tunemux mirror --stats -s soundcloud`
}
