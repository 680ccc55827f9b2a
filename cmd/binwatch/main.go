// Package main is the entry point for binwatch, a terminal dashboard for
// food waste bins. Without a subcommand it runs the dashboard.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/j-veylop/binwatch-tui/internal/app"
	"github.com/j-veylop/binwatch-tui/internal/config"
	"github.com/j-veylop/binwatch-tui/internal/logger"
	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/services"
	"github.com/j-veylop/binwatch-tui/internal/ui/tabs/bins"
	"github.com/j-veylop/binwatch-tui/internal/ui/tabs/info"
	"github.com/j-veylop/binwatch-tui/internal/ui/tabs/snapshots"
	"github.com/j-veylop/binwatch-tui/internal/ui/tabs/stats"
	"github.com/j-veylop/binwatch-tui/internal/version"
)

var rootCmd = &cobra.Command{
	Use:   "binwatch",
	Short: "Terminal dashboard for food waste bins",
	Long: `binwatch mirrors the snapshots captured by your school's bin cameras and
shows what is being thrown away.

Keyboard shortcuts:
  1-4             Switch between tabs (Bins, Stats, Snapshots, Info)
  Tab/Shift+Tab   Navigate between tabs
  j/k, Up/Down    Navigate lists
  [ / ]           Change the statistics period
  r               Refresh data
  ?               Toggle help
  q, Ctrl+C       Quit

Environment variables:
  API_URL                    Bin backend URL (default: http://localhost:8000)
  DATABASE_PATH              SQLite mirror path
  SESSION_PATH               Session file path
  SUMMARIZER                 backend, ollama or off (default: backend)
  OLLAMA_URL, OLLAMA_MODEL   Local model used when SUMMARIZER=ollama
  SNAPSHOT_REFRESH_INTERVAL  Snapshot polling interval (default: 60s)
  LOG_PATH, LOG_LEVEL        Log file and level

The first .env file found in the current directory, ~/.config/binwatch or
one of the two parent directories is loaded before the environment is read.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDashboard()
	},
}

var initialWindow string

func init() {
	rootCmd.Flags().StringVarP(&initialWindow, "window", "w", string(models.DefaultWindow),
		"initial statistics period (1_day, 1_week, 2_weeks, 1_month, 1_year, all_time)")
	rootCmd.AddCommand(loginCmd, registerCmd, logoutCmd, addBinCmd, statusCmd, versionCmd)
}

func main() {
	rootCmd.Version = version.GetVersion()
	rootCmd.SetVersionTemplate(version.Info() + "\n")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setup loads the configuration and opens the log file. The returned
// function closes the log.
func setup() (*config.Config, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	closer, err := logger.Init(cfg.LogPath, cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log: %w", err)
	}
	return cfg, func() { _ = closer.Close() }, nil
}

func runDashboard() error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	logger.Info("starting dashboard", "version", version.GetVersion(), "api_url", cfg.APIURL)

	svcManager, err := services.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize services: %w", err)
	}
	defer func() {
		if closeErr := svcManager.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: error closing services: %v\n", closeErr)
		}
	}()

	model := app.NewModel(svcManager)

	window := models.ParseTimeWindow(initialWindow)
	if string(window) != initialWindow {
		logger.Warn("unknown statistics window, using default", "window", initialWindow, "default", window)
	}

	state := model.GetState()
	state.SetWindow(window)
	model.SetTabs([]app.Tab{
		bins.New(state),
		stats.New(state),
		snapshots.New(state),
		info.New(state, cfg, info.WithBackend(svcManager.Backend())),
	})

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	p := tea.NewProgram(
		model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)

	go func() {
		<-sigChan
		p.Send(tea.Quit())
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
