package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"cuentee/internal/generation"
	"cuentee/internal/models"

	"github.com/spf13/cobra"
)

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "generate <topic>",
		Short: "Generate a story about a free-form topic",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := generation.TopicRequest(strings.Join(args, " "))
			return runGeneration(cmd, ctx, req, raw)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the raw JSON result instead of markdown")
	return cmd
}

func newGuidedCommand(ctx *commandContext) *cobra.Command {
	var payload generation.GuidedPayload
	var raw bool

	cmd := &cobra.Command{
		Use:   "guided",
		Short: "Generate a story from guided parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGeneration(cmd, ctx, generation.GuidedRequest(payload), raw)
		},
	}
	cmd.Flags().StringVar(&payload.AgeGroup, "age-group", "", "Reader age group, for example 6-8")
	cmd.Flags().StringVar(&payload.Protagonist, "protagonist", "", "Main character")
	cmd.Flags().StringVar(&payload.ScientificTopic, "scientific-topic", "", "Science topic the story explains")
	cmd.Flags().StringVar(&payload.Mission, "mission", "", "What the protagonist has to achieve")
	cmd.Flags().StringVar(&payload.VisualStyle, "visual-style", "", "Illustration style")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print the raw JSON result instead of markdown")
	_ = cmd.MarkFlagRequired("protagonist")
	_ = cmd.MarkFlagRequired("scientific-topic")
	return cmd
}

func runGeneration(cmd *cobra.Command, ctx *commandContext, req generation.Request, raw bool) error {
	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}

	api, err := ctx.apiClient()
	if err != nil {
		return err
	}
	sess := ctx.newSession(api)

	// Ctrl-C: отменяем задачу и возвращаем сессию в idle
	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-runCtx.Done():
			sess.Reset()
		case <-finished:
		}
	}()

	progress := cmd.ErrOrStderr()
	var result json.RawMessage
	err = ctx.withToken(runCtx, func(token string) error {
		var runErr error
		result, runErr = sess.Run(runCtx, req, token, func(u generation.Update) {
			printProgress(progress, u)
		})
		return runErr
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || runCtx.Err() != nil {
			fmt.Fprintln(progress, "Generation cancelled")
			return context.Canceled
		}
		if errors.Is(err, errNoCredentials) {
			return err
		}
		return errors.New(generation.UserMessage(err))
	}
	return printStory(cmd.OutOrStdout(), result, raw)
}

func printProgress(w io.Writer, u generation.Update) {
	switch u.Status {
	case models.GenerationStatusQueued:
		fmt.Fprintln(w, "Submitting story request...")
	case models.GenerationStatusProcessing:
		fmt.Fprintf(w, "Task %s is being processed...\n", u.TaskID)
	case models.GenerationStatusCompleted:
		fmt.Fprintf(w, "Task %s completed\n", u.TaskID)
	case models.GenerationStatusFailed:
		fmt.Fprintf(w, "Generation failed: %s\n", u.Message())
	}
}
