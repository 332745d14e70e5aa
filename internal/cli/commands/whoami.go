package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paneld-dev/paneld/internal/session"
)

// NewWhoamiCmd creates the whoami command
func NewWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWhoami(cmd)
		},
	}
}

func runWhoami(cmd *cobra.Command) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.close()

	if !app.client.HasCredential() {
		return errNotLoggedIn
	}

	// Verification refreshes an expired access credential transparently
	app.store.EnsureVerified(cmd.Context())
	snap, err := app.store.WaitSettled(cmd.Context())
	if err != nil {
		return err
	}

	if snap.Status != session.StatusAuthenticated {
		if snap.Error != "" {
			return errors.New(snap.Error)
		}
		return errNotLoggedIn
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s (%s)\n", snap.User.DisplayName(), snap.User.Email)
	fmt.Fprintf(out, "  Server: %s (%s)\n", app.cfg.Environment.APIURL, app.cfg.Environment.Name)
	if snap.User.Role != "" {
		fmt.Fprintf(out, "  Role:   %s\n", snap.User.Role)
	}

	return nil
}
