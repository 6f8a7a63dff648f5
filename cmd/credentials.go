package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"tasnim.dev/iamctl/internal/credentials"
	"tasnim.dev/iamctl/internal/menu"
	"tasnim.dev/iamctl/internal/state"
	"tasnim.dev/iamctl/internal/tui/theme"
)

func NewCredentialsCmd(o *Options) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "credentials",
		Aliases: []string{"creds"},
		Short:   "Show issued credentials and manage access keys",
	}
	cmd.AddCommand(
		newCredentialsShowCmd(o),
		newCredentialsFixKeysCmd(o),
		newCredentialsVerifyCmd(o),
		newCredentialsHashCmd(),
	)
	return cmd
}

func newCredentialsShowCmd(o *Options) *cobra.Command {
	var reveal bool
	cmd := &cobra.Command{
		Use:   "show [USER]",
		Short: "Print recorded access keys and passwords after the password check",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(o, true, func(ctx context.Context, env *Env) error {
				if err := env.Gate.Verify(); err != nil {
					return err
				}
				user := ""
				if len(args) == 1 {
					user = args[0]
				}
				snap, err := env.Backend.Load(ctx, state.StackUsers)
				if err != nil {
					return err
				}
				fmt.Fprint(env.Out, menu.RenderCredentials(credentials.Recorded(snap, user), reveal))
				return nil
			})(cmd, args)
		},
	}
	cmd.Flags().BoolVar(&reveal, "reveal", false, "print secrets and passwords in full")
	return cmd
}

func newCredentialsFixKeysCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "fix-keys",
		Short: "Pick and delete access keys for users at the key limit",
		RunE: withEnv(o, true, func(ctx context.Context, env *Env) error {
			return menu.New(env.MenuDeps(), env.Prompter, env.Out, env.Log).Dispatch(ctx, menu.ChoiceFixKeys)
		}),
	}
}

func newCredentialsVerifyCmd(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify",
		Short: "Show the account and identity behind the active profile",
		RunE: withEnv(o, false, func(ctx context.Context, env *Env) error {
			id, err := env.AWS.Identity(ctx)
			if err != nil {
				return err
			}
			profile := env.Profile
			if profile == "" {
				profile = "default"
			}
			fmt.Fprintf(env.Out, "Profile:  %s\nAccount:  %s\nIdentity: %s\n", profile, id.Account, id.ARN)
			fmt.Fprintln(env.Out, theme.SuccessStyle.Render("Credentials verified."))
			return nil
		}),
	}
}

// newCredentialsHashCmd needs no AWS session, so it skips withEnv.
func newCredentialsHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print a bcrypt hash for credential_password_hash",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := menu.NewLinePrompter()
			defer p.Close()
			pw, err := p.Password("Password: ")
			if err != nil {
				return err
			}
			again, err := p.Password("Repeat: ")
			if err != nil {
				return err
			}
			if pw != again {
				return fmt.Errorf("passwords do not match")
			}
			hash, err := credentials.HashPassword(pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
