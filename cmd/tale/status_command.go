package main

import (
	"context"
	"errors"
	"fmt"

	"cuentee/internal/generation"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "status <task-id>",
		Short: "Show the status of a generation task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx := cmd.Context()
			if runCtx == nil {
				runCtx = context.Background()
			}
			api, err := ctx.apiClient()
			if err != nil {
				return err
			}

			var status *generation.TaskStatus
			err = ctx.withToken(runCtx, func(token string) error {
				var statusErr error
				status, statusErr = api.GetTaskStatus(runCtx, args[0], token)
				return statusErr
			})
			if err != nil {
				if errors.Is(err, errNoCredentials) {
					return err
				}
				return errors.New(generation.UserMessage(err))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Task:   %s\n", args[0])
			fmt.Fprintf(out, "Status: %s\n", status.Status)
			switch status.Status {
			case generation.TaskStatusFailure:
				msg := generation.DefaultTaskFailureMessage
				if status.Error != nil && *status.Error != "" {
					msg = *status.Error
				}
				fmt.Fprintf(out, "Error:  %s\n", msg)
			case generation.TaskStatusSuccess:
				fmt.Fprintln(out)
				return printStory(out, status.Result, raw)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the raw JSON result instead of markdown")
	return cmd
}
