package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/j-veylop/binwatch-tui/internal/db"
	"github.com/j-veylop/binwatch-tui/internal/logger"
	"github.com/j-veylop/binwatch-tui/internal/models"
	"github.com/j-veylop/binwatch-tui/internal/services/backend"
	"github.com/j-veylop/binwatch-tui/internal/services/session"
	"github.com/j-veylop/binwatch-tui/internal/version"
)

const commandTimeout = 30 * time.Second

var (
	registerPassword string
	logoutPurge      bool
	addBinName       string
	addBinIP         string
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in as a registered school",
	Long: `Log in as a registered school. A running dashboard picks the new
session up immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Register a new school and log in",
	Args:  cobra.ExactArgs(1),
	RunE:  runRegister,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out of the current school",
	Long: `Log out of the current school. Mirrored bins and snapshots are kept
unless --purge is given.`,
	Args: cobra.NoArgs,
	RunE: runLogout,
}

var addBinCmd = &cobra.Command{
	Use:   "add-bin",
	Short: "Register a bin camera for the current school",
	Example: `  binwatch add-bin --name "Canteen" --ip 192.168.1.40`,
	Args:    cobra.NoArgs,
	RunE:    runAddBin,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the session, backend reachability and local mirror",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())
	},
}

func init() {
	registerCmd.Flags().StringVarP(&registerPassword, "password", "p", "", "school password (at least 6 characters)")
	_ = registerCmd.MarkFlagRequired("password")

	logoutCmd.Flags().BoolVar(&logoutPurge, "purge", false, "also delete the school's mirrored bins and snapshots")

	addBinCmd.Flags().StringVar(&addBinName, "name", "", "bin name")
	addBinCmd.Flags().StringVar(&addBinIP, "ip", "", "camera IP address or hostname")
	_ = addBinCmd.MarkFlagRequired("name")
	_ = addBinCmd.MarkFlagRequired("ip")
}

// commandContext is cancelled on interrupt or after commandTimeout.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := commandContext()
	defer cancel()

	school, err := backend.NewClient(cfg.APIURL).FindSchool(ctx, args[0])
	if backend.IsNotFound(err) {
		return fmt.Errorf("no school named %q: register it with binwatch register %s", args[0], args[0])
	}
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}
	if err := session.Save(cfg.SessionPath, session.File{School: school}); err != nil {
		return err
	}

	logger.Info("logged in", "school_id", school.ID, "username", school.Username)
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (school #%d)\n", school.Username, school.ID)
	return nil
}

func runRegister(cmd *cobra.Command, args []string) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, cancel := commandContext()
	defer cancel()

	school, err := backend.NewClient(cfg.APIURL).RegisterSchool(ctx, models.SchoolCredentials{
		Username:        args[0],
		Password:        registerPassword,
		ConfirmPassword: registerPassword,
	})
	if err != nil {
		return fmt.Errorf("registration failed: %w", err)
	}
	if err := session.Save(cfg.SessionPath, session.File{School: school}); err != nil {
		return err
	}

	logger.Info("registered school", "school_id", school.ID, "username", school.Username)
	fmt.Fprintf(cmd.OutOrStdout(), "Registered and logged in as %s (school #%d)\n", school.Username, school.ID)
	return nil
}

func runLogout(cmd *cobra.Command, _ []string) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	current, err := session.Load(cfg.SessionPath)
	if errors.Is(err, os.ErrNotExist) || (err == nil && current.School == nil) {
		fmt.Fprintln(cmd.OutOrStdout(), "Not logged in")
		return nil
	}
	if err != nil {
		return err
	}

	if logoutPurge {
		if err := purgeSchool(cfg.DatabasePath, current.School.ID); err != nil {
			return err
		}
	}
	if err := session.Remove(cfg.SessionPath); err != nil {
		return err
	}

	logger.Info("logged out", "school_id", current.School.ID, "purged", logoutPurge)
	fmt.Fprintf(cmd.OutOrStdout(), "Logged out of %s\n", current.School.Username)
	return nil
}

func purgeSchool(dbPath string, schoolID int64) error {
	database, err := db.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = database.Close() }()

	ctx, cancel := commandContext()
	defer cancel()

	if err := database.DeleteSchoolData(ctx, schoolID); err != nil {
		return fmt.Errorf("failed to purge school data: %w", err)
	}
	if err := database.Vacuum(); err != nil {
		logger.Warn("failed to vacuum database", "error", err)
	}
	return nil
}

func runAddBin(cmd *cobra.Command, _ []string) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	current, err := session.Load(cfg.SessionPath)
	if err != nil || current.School == nil {
		return errors.New("not logged in: run binwatch login <username> first")
	}

	ctx, cancel := commandContext()
	defer cancel()

	bin, err := backend.NewClient(cfg.APIURL).AddBin(ctx, models.BinCreate{
		Name:      addBinName,
		IPAddress: addBinIP,
		SchoolID:  current.School.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to add bin: %w", err)
	}

	logger.Info("added bin", "bin_id", bin.ID, "school_id", current.School.ID)
	fmt.Fprintf(cmd.OutOrStdout(), "Added %s (bin #%d) at %s\n", bin.DisplayName(), bin.ID, bin.IPAddress)
	return nil
}

func runStatus(cmd *cobra.Command, _ []string) error {
	cfg, closeLog, err := setup()
	if err != nil {
		return err
	}
	defer closeLog()

	out := cmd.OutOrStdout()
	ctx, cancel := commandContext()
	defer cancel()

	if err := backend.NewClient(cfg.APIURL).Ping(ctx); err != nil {
		fmt.Fprintf(out, "Backend:  %s (unreachable: %v)\n", cfg.APIURL, err)
	} else {
		fmt.Fprintf(out, "Backend:  %s (ok)\n", cfg.APIURL)
	}

	current, err := session.Load(cfg.SessionPath)
	if err != nil || current.School == nil {
		fmt.Fprintln(out, "Session:  not logged in")
		return nil
	}
	fmt.Fprintf(out, "Session:  %s (school #%d)\n", current.School.Username, current.School.ID)

	database, err := db.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = database.Close() }()

	bins, err := database.ListBins(ctx, current.School.ID)
	if err != nil {
		return fmt.Errorf("failed to read mirrored bins: %w", err)
	}
	fmt.Fprintf(out, "Mirror:   %d bins in %s\n", len(bins), database.Path())
	for i := range bins {
		count, err := database.CountSnapshots(ctx, bins[i].ID)
		if err != nil {
			return fmt.Errorf("failed to count snapshots: %w", err)
		}
		fmt.Fprintf(out, "  %-20s score %d, %d snapshots\n", bins[i].DisplayName(), bins[i].CurrentScore, count)
	}
	return nil
}
