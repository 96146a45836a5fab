package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nexus-im/estatechat/internal/auth"
	"github.com/nexus-im/estatechat/store/user"
)

// TokenCmd returns the token command, which mints a bearer token for a user.
func TokenCmd() *cobra.Command {
	var skipLookup bool

	cmd := &cobra.Command{
		Use:   "token <user-id>",
		Short: "Issue an API token for a user",
		Long: `Issue a signed bearer token for an existing user, for local testing and
service-to-service calls.

Examples:
  nexus token 42                  # check user 42 exists, then print a token
  nexus token 42 --skip-lookup    # do not touch the database`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			userID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || userID <= 0 {
				return fmt.Errorf("invalid user id %q", args[0])
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireSecret(); err != nil {
				return err
			}

			var name string
			if !skipLookup {
				db, err := openDB(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer db.Close()

				profile, err := user.NewSQLStore(db).GetBasicProfile(cmd.Context(), userID)
				if err != nil {
					if errors.Is(err, user.ErrUserNotFound) {
						return fmt.Errorf("user %d does not exist", userID)
					}
					return err
				}
				name = strings.TrimSpace(profile.FirstName + " " + profile.LastName)
			}

			token, err := auth.NewAuthenticator(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL).GenerateToken(userID, name)
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}

			out := cmd.OutOrStdout()
			label := fmt.Sprintf("user %d", userID)
			if name != "" {
				label = fmt.Sprintf("%s (%s)", label, name)
			}
			fmt.Fprintf(out, "%s token for %s, valid %s\n", color.New(color.FgGreen).Sprint("✓"), label, cfg.TokenTTL)
			fmt.Fprintln(out, token)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipLookup, "skip-lookup", false, "do not check that the user exists")

	return cmd
}
