package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/security"
	"github.com/Srinidhi-070/ai-courtroom-simulator/pkg/session"
)

func newTokenCmd() *cobra.Command {
	var (
		userID   string
		username string
		role     string
		ttl      time.Duration
		secret   string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the advanced profile",
		Long: `Prints an HS256 JWT carrying user_id, username and role, signed with
--secret or $JWT_SECRET. A random user id is used when --user-id is empty.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			if secret == "" {
				return errors.New("token: --secret or JWT_SECRET is required")
			}
			if username == "" {
				return errors.New("token: --user is required")
			}
			if _, err := session.ParseRole(role); err != nil {
				return fmt.Errorf("token: %w", err)
			}
			if userID == "" {
				userID = uuid.NewString()
			}

			auth, err := security.NewJWTAuthenticator(secret, security.WithTokenTTL(ttl))
			if err != nil {
				return fmt.Errorf("token: %w", err)
			}
			token, err := auth.Issue(security.Principal{UserID: userID, Username: username, Role: role})
			if err != nil {
				return fmt.Errorf("token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "user", "u", "", "username to embed")
	cmd.Flags().StringVar(&userID, "user-id", "", "user id to embed (default: random)")
	cmd.Flags().StringVarP(&role, "role", "r", string(session.RoleDefense), "participant role")
	cmd.Flags().DurationVar(&ttl, "ttl", security.DefaultTokenTTL, "token lifetime")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (default $JWT_SECRET)")
	return cmd
}
