package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tasnim.dev/iamctl/internal/engine"
	"tasnim.dev/iamctl/internal/menu"
	"tasnim.dev/iamctl/internal/state"
	"tasnim.dev/iamctl/internal/users"
	"tasnim.dev/iamctl/internal/utils"
)

func NewUsersCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Create, edit, delete, import and sync IAM users",
	}
	cmd.AddCommand(
		newUsersCreateCmd(o),
		newUsersEditCmd(o),
		newUsersDeleteCmd(o),
		newUsersImportCmd(o),
		newUsersSyncCmd(o),
		newUsersListCmd(o),
	)
	return cmd
}

var errOtherUsersPending = errors.New("the users stack has pending changes for other users; review them with 'iamctl state preview' and deploy without --yes")

// confirmStaged confirms a deploy made for one user. Pending changes for
// other users are always shown, and --yes does not apply them unseen.
func (e *Env) confirmStaged(user string, yes bool) engine.ConfirmFunc {
	confirm := e.confirmPlan(yes)
	return func(plan *engine.Plan) (bool, error) {
		others := plan.OtherUsers(user)
		if len(others) == 0 {
			return confirm(plan)
		}
		if yes {
			fmt.Fprint(e.Out, menu.RenderPlan(plan))
			fmt.Fprintln(e.Out, menu.OtherUsersWarning(user, others))
			return false, errOtherUsersPending
		}
		fmt.Fprintln(e.Out, menu.OtherUsersWarning(user, others))
		return confirm(plan)
	}
}

// deployStaged deploys the users stack and restores the staged user's
// previous configuration if the plan is declined or refused.
func deployStaged(ctx context.Context, env *Env, st users.Staged, yes bool) error {
	res, err := env.Engine.Deploy(ctx, state.StackUsers, env.confirmStaged(st.User, yes))
	if errors.Is(err, errOtherUsersPending) {
		if rerr := env.Users.Revert(ctx, st); rerr != nil {
			return fmt.Errorf("reverting staged change for %s: %w", st.User, rerr)
		}
		return err
	}
	if errors.Is(err, engine.ErrDeclined) || errors.Is(err, menu.ErrCancelled) {
		if rerr := env.Users.Revert(ctx, st); rerr != nil {
			return fmt.Errorf("reverting staged change for %s: %w", st.User, rerr)
		}
		fmt.Fprintln(env.Out, "Cancelled. The staged change was discarded.")
		return nil
	}
	if res != nil {
		fmt.Fprint(env.Out, menu.RenderResult(res))
	} else if err == nil {
		fmt.Fprintln(env.Out, "No changes to deploy.")
	}
	return err
}

func newUsersCreateCmd(o *Options) *cobra.Command {
	var req users.CreateRequest
	var yes bool
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a user with group memberships and optional credentials",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Name = args[0]
			return withEnv(o, true, func(ctx context.Context, env *Env) error {
				st, err := env.Users.Create(ctx, req)
				if err != nil {
					return err
				}
				return deployStaged(ctx, env, st, yes)
			})(cmd, args)
		},
	}
	cmd.Flags().StringSliceVarP(&req.Groups, "groups", "g", nil, "groups to join (comma separated)")
	cmd.Flags().BoolVar(&req.CreateKey, "key", true, "create an access key")
	cmd.Flags().BoolVar(&req.ConsoleAccess, "console", false, "create a console login with a generated password")
	cmd.Flags().StringVar(&req.Path, "path", "", "IAM path (default from config, /system/)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "apply without asking")
	return cmd
}

func newUsersEditCmd(o *Options) *cobra.Command {
	var groupNames []string
	var adopt, yes bool
	cmd := &cobra.Command{
		Use:   "edit NAME",
		Short: "Replace a user's group memberships",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(o, true, func(ctx context.Context, env *Env) error {
				res, err := env.Users.Edit(ctx, args[0], groupNames, adopt)
				if err != nil {
					if errors.Is(err, engine.ErrDrift) {
						return fmt.Errorf("%w\nrerun with --adopt-live to accept the live memberships, or run 'iamctl state refresh'", err)
					}
					return err
				}
				fmt.Fprintf(env.Out, "Adding: %s\nRemoving: %s\n", utils.ListOrDash(res.Add), utils.ListOrDash(res.Remove))
				return deployStaged(ctx, env, res.Staged, yes)
			})(cmd, args)
		},
	}
	cmd.Flags().StringSliceVarP(&groupNames, "groups", "g", nil, "complete set of groups (comma separated)")
	cmd.Flags().BoolVar(&adopt, "adopt-live", false, "accept drifted live memberships before editing")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "apply without asking")
	return cmd
}

func newUsersDeleteCmd(o *Options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a user and every credential it holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(o, true, func(ctx context.Context, env *Env) error {
				st, err := env.Users.Delete(ctx, args[0])
				if err != nil {
					return err
				}
				return deployStaged(ctx, env, st, yes)
			})(cmd, args)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}

func newUsersImportCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "import NAME",
		Short: "Bind an existing user and its credentials to state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(o, false, func(ctx context.Context, env *Env) error {
				imported, err := env.Users.Import(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(env.Out, "Imported %s\n  path: %s\n  groups: %s\n  access keys: %s\n  console access: %t\n",
					imported.Name, imported.Path, utils.ListOrDash(imported.Groups),
					utils.ListOrDash(imported.Keys), imported.ConsoleAccess)
				return nil
			})(cmd, args)
		},
	}
}

func newUsersSyncCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Import every provider user not yet in state",
		RunE: withEnv(o, false, func(ctx context.Context, env *Env) error {
			report, err := env.Users.Sync(ctx)
			if report == nil {
				return err
			}
			fmt.Fprintf(env.Out, "Newly imported (%d): %s\nAlready in state (%d): %s\n",
				len(report.Imported), utils.ListOrDash(report.Imported),
				len(report.AlreadyBound), utils.ListOrDash(report.AlreadyBound))
			if len(report.Failed) > 0 {
				fmt.Fprintf(env.Out, "Failed (%d): %s\n", len(report.Failed), utils.ListOrDash(report.Failed))
			}
			return err
		}),
	}
}

func newUsersListCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users with their groups, keys and state binding",
		RunE: withEnv(o, false, func(ctx context.Context, env *Env) error {
			inv, err := env.Users.List(ctx)
			w := tabwriter.NewWriter(env.Out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tSTATUS\tGROUPS\tKEYS\tCONSOLE")
			for _, u := range inv {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%t\n", u.Name, u.Status, utils.ListOrDash(u.Groups), strconv.Itoa(len(u.Keys)), u.Console)
			}
			w.Flush()
			return err
		}),
	}
}
