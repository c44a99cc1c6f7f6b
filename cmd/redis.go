package cmd

import (
	"fmt"

	"tunemux/db"

	"github.com/spf13/cobra"
)

var redisCmd = &cobra.Command{
	Use:   "redis",
	Short: "Check the Redis response cache",
	Long:  `Connect to the configured Redis server and run a write, read and delete round trip.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Fprintf(cmd.OutOrStdout(), "redis: %s:%s db %d\n", cfg.RedisHost, cfg.RedisPort, cfg.RedisDB)

		client, err := db.ConnectRedis(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer client.Close()

		if err := db.CheckRedis(cmd.Context(), client); err != nil {
			return fmt.Errorf("redis round trip: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "redis ok")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(redisCmd)
}
