package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paneld-dev/paneld/internal/session"
)

// NewLogoutCmd creates the logout command
func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd)
		},
	}
}

func runLogout(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()

	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.close()

	if !app.client.HasCredential() {
		fmt.Fprintln(out, "Not logged in.")
		return nil
	}

	// Local state is cleared whatever the backend says
	if err := app.store.Logout(cmd.Context()); err != nil {
		if !errors.Is(err, session.ErrRemoteLogout) {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: the server could not end the session: %v\n", err)
	}

	fmt.Fprintln(out, "✓ Logged out")
	return nil
}
