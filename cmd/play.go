package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"tunemux/core/player"
	"tunemux/core/queue"

	"github.com/spf13/cobra"
)

var playPick int

var playCmd = &cobra.Command{
	Use:   "play <query>",
	Short: "Search and play the chosen result",
	Long: `Search every enabled source, pick a result and play it through the
sound card. The remaining results stay queued behind it.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		tracks := a.agg.Search(ctx, strings.Join(args, " "), "")
		if len(tracks) == 0 {
			return errors.New("no results")
		}

		choice := playPick
		if choice == 0 {
			printTracks(cmd.OutOrStdout(), tracks)
			fmt.Fprint(cmd.OutOrStdout(), "pick: ")
			if _, err := fmt.Fscan(cmd.InOrStdin(), &choice); err != nil {
				return fmt.Errorf("read choice: %w", err)
			}
		}
		if choice < 1 || choice > len(tracks) {
			return fmt.Errorf("choice %d out of range", choice)
		}

		pb := newPlayback(a, false)
		defer pb.Close()

		q := queue.New()
		for _, t := range tracks {
			q.Add(t)
		}
		p := player.New(q, pb, a.agg, a.store)
		go p.Run(ctx)

		if err := p.PlayIndex(ctx, choice-1); err != nil {
			return err
		}
		return waitForStop(ctx, cmd, p)
	},
}

// waitForStop prints the playing track until playback stops or ctx ends.
func waitForStop(ctx context.Context, cmd *cobra.Command, p *player.Player) error {
	t := time.NewTicker(time.Second)
	defer t.Stop()

	var last string
	for {
		select {
		case <-ctx.Done():
			p.Stop()
			return nil
		case <-t.C:
		}
		st := p.Status()
		if st.State == player.StateStopped || st.State == player.StateIdle {
			return nil
		}
		if st.Track != nil && st.Track.Key() != last {
			last = st.Track.Key()
			fmt.Fprintf(cmd.OutOrStdout(), "now playing: %s - %s\n", st.Track.Artist, st.Track.Title)
		}
	}
}

func init() {
	rootCmd.AddCommand(playCmd)
	playCmd.Flags().IntVarP(&playPick, "pick", "n", 0, "play result n without asking")
}
