package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/paneld-dev/paneld/internal/config"
)

// NewEnvCmd creates the env command
func NewEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "Show the resolved environment and URLs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Environment:\t%s\n", cfg.Environment.Name)
			fmt.Fprintf(w, "API URL:\t%s\n", cfg.Environment.APIURL)
			fmt.Fprintf(w, "Frontend URL:\t%s\n", cfg.Environment.FrontendURL)
			fmt.Fprintf(w, "Dashboard:\t%s\n", cfg.Dashboard.Address)
			return w.Flush()
		},
	}
}
