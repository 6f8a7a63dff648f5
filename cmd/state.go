package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tasnim.dev/iamctl/internal/engine"
	"tasnim.dev/iamctl/internal/menu"
	"tasnim.dev/iamctl/internal/state"
	"tasnim.dev/iamctl/internal/utils"
)

func NewStateCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Refresh, preview and deploy the declarative state",
	}
	cmd.AddCommand(
		newStateRefreshCmd(o),
		newStatePreviewCmd(o),
		newStateDeployCmd(o),
		newStateHistoryCmd(o),
		newStateStacksCmd(o),
	)
	return cmd
}

func stacksFor(stack string) []string {
	if stack == "" {
		return []string{state.StackGroups, state.StackUsers}
	}
	return []string{stack}
}

func newStateRefreshCmd(o *Options) *cobra.Command {
	var stack string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Re-read recorded resources from the provider",
		RunE: withEnv(o, false, func(ctx context.Context, env *Env) error {
			var failed []string
			for _, s := range stacksFor(stack) {
				report, err := env.Engine.Refresh(ctx, s)
				if report != nil {
					fmt.Fprintln(env.Out, menu.RenderRefresh(report))
				}
				if err != nil {
					failed = append(failed, fmt.Sprintf("%s: %v", s, err))
				}
			}
			if len(failed) > 0 {
				return errors.New("refresh incomplete:\n  " + strings.Join(failed, "\n  "))
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&stack, "stack", "", "refresh only this stack (groups or users)")
	return cmd
}

func newStatePreviewCmd(o *Options) *cobra.Command {
	var stack string
	cmd := &cobra.Command{
		Use:   "preview",
		Short: "Show the changes a deploy would make",
		RunE: withEnv(o, false, func(ctx context.Context, env *Env) error {
			for _, s := range stacksFor(stack) {
				plan, err := env.Engine.Plan(ctx, s)
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "%s:\n%s", s, menu.RenderPlan(plan))
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&stack, "stack", "", "preview only this stack (groups or users)")
	return cmd
}

func newStateDeployCmd(o *Options) *cobra.Command {
	var (
		stack string
		yes   bool
	)
	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Apply pending configuration changes",
		RunE: withEnv(o, true, func(ctx context.Context, env *Env) error {
			res, err := env.Engine.Deploy(ctx, stack, env.confirmPlan(yes))
			switch {
			case errors.Is(err, engine.ErrDeclined):
				fmt.Fprintln(env.Out, "Deployment cancelled.")
				return nil
			case res == nil && err == nil:
				fmt.Fprintln(env.Out, "No changes to deploy. Everything is up to date.")
				return nil
			case res != nil:
				fmt.Fprint(env.Out, menu.RenderResult(res))
			}
			return err
		}),
	}
	cmd.Flags().StringVar(&stack, "stack", state.StackUsers, "stack to deploy (groups or users)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "apply without asking")
	return cmd
}

func newStateHistoryCmd(o *Options) *cobra.Command {
	var stack string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past deployments",
		RunE: withEnv(o, false, func(ctx context.Context, env *Env) error {
			w := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "STACK\tOPERATION\tSTARTED\tCHANGES\tRESULT\tERROR")
			for _, s := range stacksFor(stack) {
				snap, err := env.Backend.Load(ctx, s)
				if err != nil {
					return err
				}
				for _, d := range snap.History {
					fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", d.Stack, d.Operation,
						utils.TimeOrDash(d.StartedAt, utils.DateTimeSec), d.Changes, d.Result, utils.ListOrDash(nonEmpty(d.Error)))
				}
			}
			return w.Flush()
		}),
	}
	cmd.Flags().StringVar(&stack, "stack", "", "only this stack (groups or users)")
	return cmd
}

func nonEmpty(s string) []string {
	if s == "" {
		return nil
	}
	return []string{s}
}

func newStateStacksCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "stacks",
		Short: "List stacks present in the state backend",
		RunE: withEnv(o, false, func(ctx context.Context, env *Env) error {
			stacks, err := env.Backend.Stacks(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.Out, "backend: %s\n", env.Config.Backend())
			for _, s := range stacks {
				fmt.Fprintln(env.Out, s)
			}
			return nil
		}),
	}
}
