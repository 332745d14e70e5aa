package commands

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/paneld-dev/paneld/internal/session"
)

// NewRegisterCmd creates the register command
func NewRegisterCmd() *cobra.Command {
	var req session.RegisterRequest

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account on the paneld backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegister(cmd, req)
		},
	}

	cmd.Flags().StringVar(&req.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&req.LastName, "last-name", "", "Last name")
	cmd.Flags().StringVar(&req.Email, "email", "", "Email address")
	cmd.Flags().StringVar(&req.Phone, "phone", "", "Phone number, 10 digits (optional)")
	cmd.Flags().StringVar(&req.Password, "password", "", "Password, at least 8 characters (will prompt if not provided)")

	return cmd
}

func runRegister(cmd *cobra.Command, req session.RegisterRequest) error {
	out := cmd.OutOrStdout()

	if req.Password == "" && term.IsTerminal(int(syscall.Stdin)) {
		password, err := readPassword(out)
		if err != nil {
			return err
		}
		req.Password = password
	}

	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.close()

	err = app.store.Register(cmd.Context(), req)
	switch {
	case errors.Is(err, session.ErrSignInRequired):
		fmt.Fprintln(out, "✓ Account created!")
		fmt.Fprintln(out, "\nSign in with: paneld login --email", req.Email)
		return nil
	case err != nil:
		return app.failure("registration failed", err)
	}

	user := app.store.Snapshot().User
	fmt.Fprintln(out, "✓ Account created!")
	fmt.Fprintf(out, "  Signed in as %s (%s)\n", user.DisplayName(), user.Email)
	return nil
}
