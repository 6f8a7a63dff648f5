package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"tasnim.dev/iamctl/internal/menu"
)

func NewMenuCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Interactive numbered menu for every operation",
		RunE: withEnv(o, true, func(ctx context.Context, env *Env) error {
			return menu.New(env.MenuDeps(), env.Prompter, env.Out, env.Log).Run(ctx)
		}),
	}
}
