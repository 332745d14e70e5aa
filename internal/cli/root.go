package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/paneld-dev/paneld/internal/cli/commands"
)

// NewRootCmd builds the paneld command tree
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "paneld",
		Short: "paneld - admin dashboard and session client",
		Long: `paneld CLI - Sign in to the paneld backend, inspect users and serve
the admin dashboard locally.

The session is kept in the OS keyring per backend URL and refreshed
transparently when the access credential expires.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().Bool("verbose", false, "Enable debug logging")

	// Add version command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "paneld version %s\n", version)
		},
	})

	// Add all subcommands
	rootCmd.AddCommand(commands.NewLoginCmd())
	rootCmd.AddCommand(commands.NewRegisterCmd())
	rootCmd.AddCommand(commands.NewLogoutCmd())
	rootCmd.AddCommand(commands.NewWhoamiCmd())
	rootCmd.AddCommand(commands.NewUsersCmd())
	rootCmd.AddCommand(commands.NewDashCmd(version))
	rootCmd.AddCommand(commands.NewEnvCmd())

	return rootCmd
}

// Execute runs the root command
func Execute(version string) error {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
