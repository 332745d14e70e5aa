package commands

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/paneld-dev/paneld/internal/dashboard"
)

// NewDashCmd creates the dash command
func NewDashCmd(version string) *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "dash",
		Short: "Serve the web dashboard and open it in the browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDash(cmd, version, noBrowser)
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "Do not open the browser")

	return cmd
}

func runDash(cmd *cobra.Command, version string, noBrowser bool) error {
	app, err := newApp(cmd)
	if err != nil {
		return err
	}
	defer app.close()

	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	srv := dashboard.New(app.store, app.client, dashboard.Options{
		Addr:       app.cfg.Dashboard.Address,
		Gatherer:   app.registry,
		SettleWait: 2 * time.Second,
		Version:    version,
		Logger:     app.logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dashboardURL := fmt.Sprintf("http://%s", app.cfg.Dashboard.Address)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Dashboard for %s (%s)\n", app.cfg.Environment.APIURL, app.cfg.Environment.Name)
	fmt.Fprintf(out, "URL: %s\n", dashboardURL)
	fmt.Fprintln(out, "Press Ctrl+C to stop.")

	if !noBrowser {
		if err := openBrowser(dashboardURL); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Failed to open browser: %v\nPlease visit: %s\n", err, dashboardURL)
		}
	}

	return srv.Start(ctx)
}

// openBrowser opens the URL in the default browser
func openBrowser(url string) error {
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "linux":
		cmd = exec.Command("xdg-open", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}
