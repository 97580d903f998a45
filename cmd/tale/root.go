package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var tokenFlag string
	var apiFlag string

	ctx := newCommandContext(&tokenFlag, &apiFlag)

	rootCmd := &cobra.Command{
		Use:           "tale",
		Short:         "Generate children's stories from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVar(&tokenFlag, "token", "", "Access token (overrides CUENTEE_ACCESS_TOKEN)")
	rootCmd.PersistentFlags().StringVar(&apiFlag, "api-url", "", "Story generation API base URL")

	rootCmd.AddCommand(newGenerateCommand(ctx))
	rootCmd.AddCommand(newGuidedCommand(ctx))
	rootCmd.AddCommand(newStatusCommand(ctx))
	rootCmd.AddCommand(newWhoamiCommand(ctx))

	return rootCmd
}
