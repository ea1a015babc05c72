package main

import (
	"fmt"

	"github.com/emmanuel-dcoder/teevil-api/internal/auth"
	"github.com/emmanuel-dcoder/teevil-api/internal/domain"

	"github.com/spf13/cobra"
)

// tokenCmd mints a bearer token for local testing against the API.
func tokenCmd() *cobra.Command {
	var (
		userID uint
		email  string
		role   string
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed access token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			tok, err := auth.IssueAccessToken(&cfg.JWT, userID, email, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().UintVar(&userID, "user", 0, "user id")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	cmd.Flags().StringVar(&role, "role", domain.RoleClient, "CLIENT, FREELANCER or ADMIN")
	return cmd
}
