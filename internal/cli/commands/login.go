package commands

import (
	"errors"
	"fmt"
	"io"
	"net/mail"
	"os"
	"syscall"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/paneld-dev/paneld/internal/session"
)

// NewLoginCmd creates the login command
func NewLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in to the paneld backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, email, password)
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Email address (or set PANELD_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "Password (or set PANELD_PASSWORD, will prompt if not provided)")

	return cmd
}

func runLogin(cmd *cobra.Command, email, password string) error {
	out := cmd.OutOrStdout()

	// Check for environment variables (useful for CI/CD)
	if email == "" {
		email = os.Getenv("PANELD_EMAIL")
	}
	if password == "" {
		password = os.Getenv("PANELD_PASSWORD")
	}

	interactive := term.IsTerminal(int(syscall.Stdin))

	if email == "" {
		if !interactive {
			return fmt.Errorf("email is required (use --email flag or PANELD_EMAIL env var)")
		}
		var err error
		if email, err = promptEmail(); err != nil {
			return err
		}
	}

	// Prompt for password if not provided via flag or env var
	if password == "" {
		if !interactive {
			return fmt.Errorf("password is required in non-interactive mode (use --password flag or PANELD_PASSWORD env var)")
		}
		var err error
		if password, err = readPassword(out); err != nil {
			return err
		}
	}

	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.close()

	fmt.Fprintf(out, "Logging in to %s (%s)...\n", app.cfg.Environment.APIURL, app.cfg.Environment.Name)

	err = app.store.Login(cmd.Context(), session.LoginRequest{Email: email, Password: password})
	if err != nil {
		return app.failure("login failed", err)
	}

	user := app.store.Snapshot().User
	fmt.Fprintln(out, "✓ Login successful!")
	fmt.Fprintf(out, "  User: %s (%s)\n", user.DisplayName(), user.Email)
	if user.IsAdmin {
		fmt.Fprintln(out, "  Role: Admin")
	}

	return nil
}

// promptEmail asks for the email address on an interactive terminal
func promptEmail() (string, error) {
	prompt := promptui.Prompt{
		Label: "Email",
		Validate: func(input string) error {
			if _, err := mail.ParseAddress(input); err != nil {
				return errors.New("enter a valid email address")
			}
			return nil
		},
	}

	email, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("login cancelled: %w", err)
	}
	return email, nil
}

// readPassword reads a password without echoing it
func readPassword(out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprintln(out) // New line after password input
	return string(bytePassword), nil
}
