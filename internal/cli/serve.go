package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/bmad-assist/bmad-assist-go/internal/buildinfo"
	"github.com/bmad-assist/bmad-assist-go/internal/config"
	"github.com/bmad-assist/bmad-assist-go/internal/dashboard"
	"github.com/bmad-assist/bmad-assist-go/internal/interactive"
	"github.com/bmad-assist/bmad-assist-go/internal/logging"
	"github.com/bmad-assist/bmad-assist-go/internal/paths"
	"github.com/bmad-assist/bmad-assist-go/internal/state"

	tea "github.com/charmbracelet/bubbletea"
)

var (
	serveFlagHost       string
	serveFlagPort       int
	serveFlagNoAutoPort bool
	serveFlagProject    string
	serveFlagTUI        bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the dashboard HTTP/SSE server",
	Long: `Start bmad-assist's dashboard: a JSON API over project state and
sprint status, plus a server-sent-events stream of phase activity for
browser clients.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlagHost, "host", "127.0.0.1", "Host to bind the dashboard server to")
	serveCmd.Flags().IntVar(&serveFlagPort, "port", 4173, "Port to bind the dashboard server to")
	serveCmd.Flags().BoolVar(&serveFlagNoAutoPort, "no-auto-port", false, "Fail instead of trying successive ports if --port is busy")
	serveCmd.Flags().StringVar(&serveFlagProject, "project", "", "Project root directory (defaults to BMAD_ORIGINAL_CWD or the current directory)")
	serveCmd.Flags().BoolVar(&serveFlagTUI, "tui", false, "Also show a live terminal event log alongside the HTTP server")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	projectRoot, err := paths.ResolveProjectRoot(serveFlagProject)
	if err != nil {
		return err
	}

	cfg, err := config.Load(projectRoot)
	if err != nil {
		return err
	}
	cfg.Dashboard.Host = serveFlagHost
	cfg.Dashboard.Port = serveFlagPort
	cfg.Dashboard.NoAutoPort = serveFlagNoAutoPort

	if flagDryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "Would serve dashboard on %s:%d for project %s (dry-run)\n",
			cfg.Dashboard.Host, cfg.Dashboard.Port, projectRoot)
		return nil
	}

	p := paths.New(projectRoot)
	store := state.NewStore(p)
	bus := dashboard.NewBus()
	logger := logging.New("dashboard")
	info := buildinfo.GetInfo()

	srv := dashboard.NewServer(cfg, p, store, bus, logger, info.Version)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if serveFlagTUI {
		return runServeWithTUI(ctx, srv, bus, cfg)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// runServeWithTUI starts the HTTP server in the background and blocks on a
// Bubble Tea program that mirrors dashboard.Bus traffic to the terminal,
// for operators who want a live view without a browser.
func runServeWithTUI(ctx context.Context, srv *dashboard.Server, bus *dashboard.Bus, cfg *config.Config) error {
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	events, unsubscribe := bus.Subscribe()
	defer unsubscribe()

	view := interactive.NewStatusView(ctx, events, cfg.Dashboard.Host, cfg.Dashboard.Port)
	program := tea.NewProgram(view)

	go func() {
		select {
		case <-ctx.Done():
			program.Quit()
		case err := <-errCh:
			if err != nil {
				program.Quit()
			}
		}
	}()

	_, err := program.Run()
	return err
}
