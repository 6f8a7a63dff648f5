package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"tasnim.dev/iamctl/cmd"
)

func main() {
	var opts cmd.Options
	rootCmd := &cobra.Command{
		Use:           "iamctl",
		Short:         "Provision IAM groups and manage users declaratively",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddGlobalFlags(rootCmd, &opts)

	rootCmd.AddCommand(cmd.NewGroupsCmd(&opts))
	rootCmd.AddCommand(cmd.NewUsersCmd(&opts))
	rootCmd.AddCommand(cmd.NewCredentialsCmd(&opts))
	rootCmd.AddCommand(cmd.NewStateCmd(&opts))
	rootCmd.AddCommand(cmd.NewMenuCmd(&opts))
	rootCmd.AddCommand(cmd.NewStatusCmd(&opts))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
