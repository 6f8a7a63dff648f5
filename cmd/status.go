package cmd

import (
	"context"
	"fmt"

	tea "charm.land/bubbletea/v2"
	"github.com/spf13/cobra"

	"tasnim.dev/iamctl/internal/tui"
)

func NewStatusCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Interactive dashboard of users, groups and access keys",
		RunE: withEnv(o, false, func(ctx context.Context, env *Env) error {
			accountID := ""
			if id, err := env.AWS.Identity(ctx); err != nil {
				env.Log.Warn("resolving account", "error", err)
			} else {
				accountID = id.Account
			}

			p := tea.NewProgram(tui.NewModel(env.Users, env.Profile, accountID))
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("running dashboard: %w", err)
			}
			return nil
		}),
	}
}
