package cmd

import (
	"fmt"
	"time"

	"github.com/isdelr/dirback/internal/auth"
	"github.com/spf13/cobra"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)
	c := &cobra.Command{
		Use:   "token",
		Short: "Issue an API token signed with JWT_SECRET",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			token, err := auth.New(opts.cfg.JWTSecret).GenerateJWT(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	c.Flags().StringVar(&subject, "subject", "cli", "token subject")
	c.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return c
}
