package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"tunemux/config"
	"tunemux/core/audio"
	"tunemux/core/player"
	"tunemux/core/queue"
	"tunemux/logger"
	"tunemux/server"

	"github.com/spf13/cobra"
)

var (
	serveAddr    string
	serveNoAudio bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the player",
	Long: `Run the HTTP API with the player attached. Expired history is pruned at
start-up and the log level follows edits to the env file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		if _, err := a.store.Cleanup(ctx); err != nil {
			logger.Warn("history cleanup failed", logger.ErrorField(err))
		}

		pb := newPlayback(a, serveNoAudio)
		defer pb.Close()

		p := player.New(queue.New(), pb, a.agg, a.store)
		go func() {
			if err := p.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("player stopped", logger.ErrorField(err))
			}
		}()

		go func() {
			err := config.Watch(ctx, envFile, func(c *config.Config) {
				logger.SetLevel(logger.LogLevel(c.LogLevel))
				logger.Info("config reloaded", logger.String("level", c.LogLevel))
			})
			if err != nil {
				logger.Warn("config watch disabled", logger.ErrorField(err))
			}
		}()

		addr := serveAddr
		if addr == "" {
			addr = cfg.ListenAddr
		}
		return server.New(a.agg, a.store, a.library, p).Start(ctx, addr)
	},
}

// newPlayback opens the sound card, or a silent stand-in when there is none.
func newPlayback(a *app, silent bool) player.Playback {
	if silent {
		return audio.NewNullPlayback()
	}
	pb, err := audio.NewBeepPlayback(audio.NewOpener(a.store, http.DefaultClient))
	if err != nil {
		logger.Warn("no audio output, running silent", logger.ErrorField(err))
		return audio.NewNullPlayback()
	}
	return pb
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVarP(&serveAddr, "addr", "a", "", "listen address (default LISTEN_ADDR)")
	serveCmd.Flags().BoolVar(&serveNoAudio, "no-audio", false, "do not open the sound card")
}
