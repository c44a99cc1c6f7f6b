package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"tunemux/core/player"
	"tunemux/core/queue"
	"tunemux/logger"
	"tunemux/tui"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Full-screen search and playback",
	Long: `Open the terminal UI. Logs go only to LOG_FILE while it runs so they do
not draw over the screen.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lc := loggerConfig(cfg)
		lc.NoConsole = true
		if err := logger.InitLogger(lc); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		pb := newPlayback(a, false)
		defer pb.Close()

		p := player.New(queue.New(), pb, a.agg, a.store)
		go p.Run(ctx)
		defer p.Stop()

		_, err = tea.NewProgram(tui.New(ctx, a.agg, p), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}
