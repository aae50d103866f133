package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"mailtriage/pkg/auth"
	"mailtriage/pkg/rbac"
)

var tokenFlags struct {
	reviewer string
	role     string
	ttl      time.Duration
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a reviewer JWT signed with jwt.secret",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is not configured")
		}
		switch tokenFlags.role {
		case rbac.RoleViewer, rbac.RoleReviewer, rbac.RoleAdmin:
		default:
			return fmt.Errorf("unknown role %q", tokenFlags.role)
		}

		tok, err := auth.GenerateJWT(tokenFlags.reviewer, tokenFlags.role, cfg.JWT.Secret, tokenFlags.ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	f := tokenCmd.Flags()
	f.StringVar(&tokenFlags.reviewer, "reviewer", "", "Reviewer name carried in the token")
	f.StringVar(&tokenFlags.role, "role", rbac.RoleReviewer, "Role: viewer, reviewer or admin")
	f.DurationVar(&tokenFlags.ttl, "ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("reviewer")
}
