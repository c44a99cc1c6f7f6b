package cmd

import (
	"fmt"
	"text/tabwriter"

	"tunemux/logger"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

var libraryCmd = &cobra.Command{
	Use:   "library",
	Short: "Manage downloads, imports and queued offline actions",
}

var downloadsCmd = &cobra.Command{
	Use:   "downloads",
	Short: "List downloaded tracks",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		downloads, err := a.store.GetDownloads(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SOURCE\tTITLE\tARTIST\tSIZE\tSAVED")
		var total uint64
		for _, d := range downloads {
			total += uint64(d.Size)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.Track.Source, d.Track.Title, d.Track.Artist,
				humanize.Bytes(uint64(d.Size)), humanize.Time(d.Timestamp))
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d tracks, %s\n", len(downloads), humanize.Bytes(total))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>...",
	Short: "Import local MP3 files as offline tracks",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		failed := 0
		for _, path := range args {
			rec, err := a.library.ImportFile(cmd.Context(), path)
			if err != nil {
				failed++
				logger.Warn("import failed", logger.String("path", path), logger.ErrorField(err))
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %s - %s (%s)\n",
				rec.Track.Artist, rec.Track.Title, humanize.Bytes(uint64(rec.Size)))
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay actions queued while offline",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.library.ReplayPending(cmd.Context(), nil)
		fmt.Fprintf(cmd.OutOrStdout(), "replayed %d, %d remaining\n", res.Replayed, res.Remaining)
		return err
	},
}

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete play and search history older than 30 days",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		res, err := a.store.Cleanup(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "removed %d history and %d search entries\n", res.History, res.SearchHistory)
		return err
	},
}

func init() {
	rootCmd.AddCommand(libraryCmd)
	libraryCmd.AddCommand(downloadsCmd, importCmd, syncCmd, cleanupCmd)

	importCmd.Example = `  tunemux library import ~/Music/*.mp3`
}
