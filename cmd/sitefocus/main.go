// Package main is the CLI entry point for sitefocus.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/eliteGoblin/focusd/site_focus/internal/client"
	"github.com/eliteGoblin/focusd/site_focus/internal/config"
	"github.com/eliteGoblin/focusd/site_focus/internal/daemon"
	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
	"github.com/eliteGoblin/focusd/site_focus/internal/infra"
	"github.com/eliteGoblin/focusd/site_focus/internal/overlay"
	"github.com/eliteGoblin/focusd/site_focus/internal/theme"
	"github.com/eliteGoblin/focusd/site_focus/internal/usecase"
)

var (
	// Version info (set via ldflags)
	Version   = "0.1.0"
	Commit    = "dev"
	BuildTime = "unknown"
)

const requestTimeout = 10 * time.Second

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sitefocus",
	Short: "Per-site focus mode",
	Long: `sitefocus blocks a website behind a full-screen overlay while you focus.

A focus session is either untimed (on until you turn it off) or timed
(ends by itself and raises a notification). The host process owns the
session store and timers; pages and the popup commands talk to it.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Turn focus mode on for the active page",
	Long: `Starts a focus session for the domain of the active page.
Without --timer the session stays on until stopped. With --timer the
session ends after the given minutes (0 selects the default length).`,
	Args: cobra.NoArgs,
	RunE: runStart,
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Turn focus mode off for the active page",
	Args:  cobra.NoArgs,
	RunE:  runStop,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the host and the active page's focus state",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var themeCmd = &cobra.Command{
	Use:   "theme [name]",
	Short: "Show or change the overlay theme",
	Long:  `Without an argument prints the saved theme. With one, saves it for the next session.`,
	Args:  cobra.MaximumNArgs(1),
	RunE:  runTheme,
}

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List available themes",
	Args:  cobra.NoArgs,
	Run:   runThemes,
}

var autostartCmd = &cobra.Command{
	Use:   "autostart",
	Short: "Manage the login LaunchAgent for the host",
}

var autostartInstallCmd = &cobra.Command{
	Use:   "install",
	Short: "Start the host automatically on login",
	Args:  cobra.NoArgs,
	RunE:  runAutostartInstall,
}

var autostartRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Stop starting the host on login",
	Args:  cobra.NoArgs,
	RunE:  runAutostartRemove,
}

var autostartStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the LaunchAgent is installed",
	Args:  cobra.NoArgs,
	Run:   runAutostartStatus,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Prints version, commit, and build time. Use --json for machine-readable output.`,
	Run:   runVersion,
}

var (
	configPath string
	jsonOutput bool
	timerFlag  int
	themeFlag  string
	detach     bool
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.sitefocus/config.yaml)")

	startCmd.Flags().IntVar(&timerFlag, "timer", -1, "End the session after this many minutes (0 = default length)")
	startCmd.Flags().StringVar(&themeFlag, "theme", "", "Overlay theme (default: saved preference)")
	serveCmd.Flags().BoolVar(&detach, "detach", false, "Run the host in the background")
	versionCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output version info as JSON")

	autostartCmd.AddCommand(autostartInstallCmd)
	autostartCmd.AddCommand(autostartRemoveCmd)
	autostartCmd.AddCommand(autostartStatusCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(themesCmd)
	rootCmd.AddCommand(pageCmd)
	rootCmd.AddCommand(autostartCmd)
	rootCmd.AddCommand(versionCmd)
}

// hostClient loads the config and returns a client for the configured host.
func hostClient() (*config.Config, *client.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	return cfg, client.New(cfg.Server.Addr), nil
}

func runStart(cmd *cobra.Command, args []string) error {
	_, c, err := hostClient()
	if err != nil {
		return err
	}

	opts := usecase.StartOptions{Theme: themeFlag}
	if cmd.Flags().Changed("timer") {
		if timerFlag < 0 {
			return domain.ErrInvalidDuration
		}
		opts.Timed = true
		opts.Minutes = timerFlag
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	state, err := c.Start(ctx, opts)
	if err != nil {
		return explain(err)
	}
	printPopupState(state)
	return nil
}

func runStop(cmd *cobra.Command, args []string) error {
	_, c, err := hostClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	state, err := c.Stop(ctx)
	if err != nil {
		return explain(err)
	}
	printPopupState(state)
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, c, err := hostClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	fmt.Println("\n=== sitefocus Status ===")

	health, err := c.Health(ctx)
	if err != nil {
		fmt.Printf("Host: %s\n", color.RedString("NOT RUNNING"))
		fmt.Printf("Address: %s\n", cfg.Server.Addr)
		fmt.Println("\nRun 'sitefocus serve --detach' to start the host.")
		fmt.Println("========================")
		if errors.Is(err, domain.ErrHostNotRunning) {
			return nil
		}
		return err
	}

	// A host on another machine answers with a pid this one does not know.
	pm := infra.NewProcessManager()
	hostState := color.GreenString("RUNNING")
	if !pm.IsRunning(health.PID) {
		hostState = color.YellowString("RUNNING (remote)")
	}
	fmt.Printf("Host: %s (pid %d, version %s)\n", hostState, health.PID, health.Version)
	fmt.Printf("Address: %s\n", c.BaseURL())
	if health.StartedAt > 0 {
		fmt.Printf("Uptime: %s\n", time.Since(time.Unix(health.StartedAt, 0)).Round(time.Second))
	}
	fmt.Printf("Open pages: %d, pending timers: %d\n", health.Tabs, health.Alarms)

	state, err := c.Popup(ctx)
	switch {
	case errors.Is(err, domain.ErrNoActiveTab):
		fmt.Println("\nNo active page.")
	case err != nil:
		return err
	default:
		fmt.Println()
		printPopupState(state)
	}

	fmt.Println("========================")
	return nil
}

func runTheme(cmd *cobra.Command, args []string) error {
	_, c, err := hostClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
	defer cancel()

	if len(args) == 0 {
		state, err := c.Popup(ctx)
		if err != nil && !errors.Is(err, domain.ErrNoActiveTab) {
			return explain(err)
		}
		name := theme.DefaultName
		if state != nil {
			name = state.Theme
		}
		fmt.Println(name)
		return nil
	}

	if err := c.SetTheme(ctx, args[0]); err != nil {
		return explain(err)
	}
	fmt.Printf("Theme set to %s\n", args[0])
	return nil
}

func runThemes(cmd *cobra.Command, args []string) {
	for _, t := range theme.NewRegistry().GetAll() {
		swatch := overlay.Swatch(t)
		fmt.Printf("  %s %s %s\n", t.Icon, swatch, t.Name)
	}
}

func runAutostartInstall(cmd *cobra.Command, args []string) error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	manager := infra.NewAutostartManager(infra.DefaultPaths())
	if manager.IsInstalled() && !manager.NeedsUpdate(execPath, configPath) {
		fmt.Println("LaunchAgent already installed")
		return nil
	}
	if err := manager.Install(cmd.Context(), execPath, configPath); err != nil {
		return err
	}
	fmt.Printf("Installed LaunchAgent at %s\n", manager.PlistPath())
	return nil
}

func runAutostartRemove(cmd *cobra.Command, args []string) error {
	manager := infra.NewAutostartManager(infra.DefaultPaths())
	if err := manager.Uninstall(cmd.Context()); err != nil {
		return err
	}
	fmt.Println("LaunchAgent removed")
	return nil
}

func runAutostartStatus(cmd *cobra.Command, args []string) {
	manager := infra.NewAutostartManager(infra.DefaultPaths())
	if manager.IsInstalled() {
		fmt.Printf("Auto-start: %s (%s)\n", color.GreenString("enabled"), manager.PlistPath())
		return
	}
	fmt.Printf("Auto-start: %s\n", color.YellowString("disabled"))
}

func runVersion(cmd *cobra.Command, args []string) {
	if jsonOutput {
		data, _ := json.Marshal(map[string]string{
			"version":    Version,
			"commit":     Commit,
			"build_time": BuildTime,
		})
		fmt.Println(string(data))
		return
	}
	fmt.Printf("sitefocus %s (commit: %s, built: %s)\n", Version, Commit, BuildTime)
}

func printPopupState(state *usecase.PopupState) {
	fmt.Printf("Page: %s\n", state.Domain)
	if !state.Active() {
		fmt.Printf("Focus mode: %s\n", color.New(color.Faint).Sprint("off"))
		fmt.Printf("Theme: %s\n", state.Theme)
		fmt.Printf("Durations: %s (default %d)\n", joinInts(state.Durations), state.DefaultMinutes)
	} else {
		fmt.Printf("Focus mode: %s\n", color.GreenString("ON"))
		fmt.Printf("Theme: %s\n", state.Session.Theme)
		if state.Session.IsTimed() {
			remaining := time.Duration(state.RemainingMs) * time.Millisecond
			fmt.Printf("Time remaining: %s\n", overlay.FormatRemaining(remaining))
		} else {
			fmt.Println("Timer: none")
		}
	}
	fmt.Printf("Dashboard: %s\n", state.DashboardURL)
}

// explain adds a hint for errors a user can act on.
func explain(err error) error {
	switch {
	case errors.Is(err, domain.ErrHostNotRunning):
		return fmt.Errorf("%w (run 'sitefocus serve --detach')", err)
	case errors.Is(err, domain.ErrNoActiveTab):
		return fmt.Errorf("%w (open one with 'sitefocus page <url>')", domain.ErrNoActiveTab)
	default:
		return err
	}
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

// startDetached spawns a background host and waits for it to answer.
func startDetached(ctx context.Context, cfg *config.Config) error {
	c := client.New(cfg.Server.Addr)
	if health, err := c.Health(ctx); err == nil {
		fmt.Printf("sitefocus host already running (pid %d)\n", health.PID)
		return nil
	}

	pid, err := daemon.StartDaemon(cfg.Path)
	if err != nil {
		return fmt.Errorf("failed to start host: %w", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := c.Health(ctx); err == nil {
			fmt.Printf("sitefocus host started (pid %d) on %s\n", pid, c.BaseURL())
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("host (pid %d) did not answer on %s", pid, cfg.Server.Addr)
}
