package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"tasnim.dev/iamctl/internal/engine"
	"tasnim.dev/iamctl/internal/groups"
	"tasnim.dev/iamctl/internal/menu"
	"tasnim.dev/iamctl/internal/tui/theme"
	"tasnim.dev/iamctl/internal/utils"
)

func NewGroupsCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groups",
		Short: "Provision and inspect groups from the role catalog",
	}
	cmd.AddCommand(newGroupsProvisionCmd(o), newGroupsListCmd(o), newGroupsImportCmd(o))
	return cmd
}

func newGroupsProvisionCmd(o *Options) *cobra.Command {
	var yes, dryRun bool
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Create or update one group per catalog role",
		RunE: withEnv(o, true, func(ctx context.Context, env *Env) error {
			fmt.Fprintf(env.Out, "Role catalog: %s\n", utils.ListOrDash(env.Catalog.Names()))
			if dryRun {
				plan, err := env.Groups.Preview(ctx)
				if err != nil {
					return err
				}
				fmt.Fprint(env.Out, menu.RenderPlan(plan))
				return nil
			}
			res, err := env.Groups.Provision(ctx, env.confirmPlan(yes))
			switch {
			case errors.Is(err, engine.ErrDeclined):
				fmt.Fprintln(env.Out, "Provisioning cancelled.")
				return nil
			case res == nil && err == nil:
				fmt.Fprintln(env.Out, "Groups match the role catalog.")
				return nil
			case res != nil:
				fmt.Fprint(env.Out, menu.RenderResult(res))
			}
			return err
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "apply without asking")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only show the plan")
	return cmd
}

func newGroupsListCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show catalog roles and live groups side by side",
		RunE: withEnv(o, false, func(ctx context.Context, env *Env) error {
			rows, err := env.Groups.View(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(env.Out, menu.RenderGroups(rows))
			return nil
		}),
	}
}

func newGroupsImportCmd(o *Options) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Discover live groups and bind catalog groups to state",
		RunE: withEnv(o, true, func(ctx context.Context, env *Env) error {
			found, err := env.Groups.Discover(ctx)
			if err != nil && len(found) == 0 {
				return err
			}
			if err != nil {
				env.Log.Warn("some group policies could not be read", "error", err)
			}
			fmt.Fprint(env.Out, groups.Summary(found, theme.SectionStyle))
			if !yes {
				ok, err := env.asker().YesNo("Bind catalog groups to state", false)
				if err != nil || !ok {
					return err
				}
			}
			report, err := env.Groups.Import(ctx, found)
			if report == nil {
				return err
			}
			fmt.Fprintf(env.Out, "Imported: %s\nAlready in state: %s\nNot in catalog: %s\n",
				utils.ListOrDash(report.Imported), utils.ListOrDash(report.AlreadyBound), utils.ListOrDash(report.NotInCatalog))
			return err
		}),
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "import without asking")
	return cmd
}
