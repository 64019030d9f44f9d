package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/treeroute/treeroute/internal/mattermost"
	"github.com/treeroute/treeroute/internal/service/achievements"
)

func init() {
	achievementsCmd.AddCommand(achievementsBackfillCmd)
	rootCmd.AddCommand(achievementsCmd)
}

var achievementsCmd = &cobra.Command{
	Use:   "achievements",
	Short: "Achievement maintenance",
}

var achievementsBackfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Re-evaluate every user and unlock any missing achievements",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		notifier := mattermost.NewClient(&a.cfg.Mattermost, a.log.Named("mattermost"))
		svc := achievements.NewService(a.db, notifier, a.log.Named("achievements"))

		unlocked, err := svc.EvaluateAllUsers(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Unlocked %d achievements\n", unlocked)
		return nil
	},
}
