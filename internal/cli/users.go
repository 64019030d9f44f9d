package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/treeroute/treeroute/internal/api/middleware"
	"github.com/treeroute/treeroute/internal/models"
)

var tokenTTL time.Duration

func init() {
	usersCreateCmd.Flags().DurationVar(&tokenTTL, "token-ttl", 0, "Also print an API token valid for this long (e.g. 720h)")
	usersCmd.AddCommand(usersCreateCmd)
	rootCmd.AddCommand(usersCmd)
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "User administration",
}

var usersCreateCmd = &cobra.Command{
	Use:   "create USERNAME",
	Short: "Create a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		username := strings.TrimSpace(args[0])
		if username == "" {
			return errors.New("username must not be empty")
		}

		a, err := newApp()
		if err != nil {
			return err
		}
		defer func() { _ = a.Close() }()

		user := &models.User{Username: username, Level: 1}
		if err := a.db.Repos().Users.Create(cmd.Context(), user); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created user %q with id %d\n", user.Username, user.ID)

		if tokenTTL > 0 {
			token, err := middleware.NewAuthenticator(a.cfg.Auth.JWTSecret).Sign(user.ID, user.Username, tokenTTL)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, token)
		}
		return nil
	},
}
