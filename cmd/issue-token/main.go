package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/stemsi/exstem-papers/internal/config"
	"github.com/stemsi/exstem-papers/internal/service"
)

// issue-token signs development JWTs. Identities are managed elsewhere; the
// API only trusts the token's type and user id.
func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var expiry time.Duration

	cmd := &cobra.Command{
		Use:          "issue-token <student|teacher> <user-id>",
		Short:        "Sign a JWT for a student or teacher",
		Args:         cobra.ExactArgs(2),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			tokenType := service.TokenType(args[0])
			if tokenType != service.TokenTypeStudent && tokenType != service.TokenTypeTeacher {
				return fmt.Errorf("token type must be %q or %q", service.TokenTypeStudent, service.TokenTypeTeacher)
			}
			userID, err := strconv.Atoi(args[1])
			if err != nil || userID <= 0 {
				return fmt.Errorf("user id must be a positive integer")
			}

			cfg := config.Load()
			if expiry > 0 {
				cfg.JWTExpiry = expiry
			}
			token, err := service.NewAuthService(cfg).GenerateToken(tokenType, userID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&expiry, "expiry", 0, "token lifetime (defaults to JWT_EXPIRY_HOURS)")
	return cmd
}
