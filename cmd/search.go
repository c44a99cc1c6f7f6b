package cmd

import (
	"fmt"
	"io"
	"strings"

	"tunemux/model"

	"github.com/spf13/cobra"
)

var searchSource string

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search every enabled source",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		tracks := a.agg.Search(cmd.Context(), strings.Join(args, " "), searchSource)
		printTracks(cmd.OutOrStdout(), tracks)
		return nil
	},
}

var trendingCmd = &cobra.Command{
	Use:   "trending",
	Short: "Show the combined trending list",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.close()

		printTracks(cmd.OutOrStdout(), a.agg.Trending(cmd.Context()))
		return nil
	},
}

func printTracks(w io.Writer, tracks []model.Track) {
	if len(tracks) == 0 {
		fmt.Fprintln(w, "no results")
		return
	}
	for i, t := range tracks {
		fmt.Fprintf(w, "%3d. [%-10s] %s - %s (%s)\n", i+1, t.Source, t.Artist, t.Title, formatSeconds(t.Duration))
	}
}

func formatSeconds(s int) string {
	if s <= 0 {
		return "--:--"
	}
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func init() {
	rootCmd.AddCommand(searchCmd, trendingCmd)
	searchCmd.Flags().StringVarP(&searchSource, "source", "s", "", "restrict results to one source")

	searchCmd.Example = `  # search every source
  tunemux search daft punk

  # only SoundCloud
  tunemux search -s soundcloud lofi`
}
