package main

import (
	"context"
	"fmt"

	"cuentee/internal/identity"

	"github.com/spf13/cobra"
)

func newWhoamiCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account the access token belongs to",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := cmd.Context()
			if runCtx == nil {
				runCtx = context.Background()
			}
			client, err := ctx.identityClient()
			if err != nil {
				return err
			}

			var user *identity.User
			err = ctx.withToken(runCtx, func(token string) error {
				var userErr error
				user, userErr = client.GetUser(runCtx, token)
				return userErr
			})
			if err != nil {
				return fmt.Errorf("token check failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "ID:    %s\n", user.ID)
			fmt.Fprintf(out, "Email: %s\n", user.Email)
			if user.Role != "" {
				fmt.Fprintf(out, "Role:  %s\n", user.Role)
			}
			return nil
		},
	}
}
