package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/paneld-dev/paneld/internal/session"
	"github.com/paneld-dev/paneld/internal/transport"
)

// NewUsersCmd creates the users command
func NewUsersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUsers(cmd)
		},
	}
}

func runUsers(cmd *cobra.Command) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.close()

	if !app.client.HasCredential() {
		return errNotLoggedIn
	}

	var users []session.User
	if err := app.client.Get(cmd.Context(), "/users", nil, &users); err != nil {
		if errors.Is(err, transport.ErrUnauthenticated) || errors.Is(err, transport.ErrSessionExpired) {
			return errNotLoggedIn
		}
		if msg := transport.UserMessage(err); msg != "" {
			return fmt.Errorf("failed to list users: %s", msg)
		}
		return fmt.Errorf("failed to list users: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(users) == 0 {
		fmt.Fprintln(out, "No users found.")
		return nil
	}

	// Display users in a table
	fmt.Fprintf(out, "Users on %s:\n\n", app.client.BaseURL())

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tEMAIL\tNAME\tROLE")
	fmt.Fprintln(w, "──\t─────\t────\t────")

	for _, user := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			user.ID,
			user.Email,
			user.DisplayName(),
			user.Role,
		)
	}

	return w.Flush()
}
