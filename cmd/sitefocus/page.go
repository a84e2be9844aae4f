package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/site_focus/internal/client"
	"github.com/eliteGoblin/focusd/site_focus/internal/config"
	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
	"github.com/eliteGoblin/focusd/site_focus/internal/logging"
	"github.com/eliteGoblin/focusd/site_focus/internal/overlay"
	"github.com/eliteGoblin/focusd/site_focus/internal/session"
	"github.com/eliteGoblin/focusd/site_focus/internal/theme"
	"github.com/eliteGoblin/focusd/site_focus/internal/usecase"
)

var pageCmd = &cobra.Command{
	Use:   "page <url>",
	Short: "Open a page and show its focus overlay",
	Long: `Registers a page with the host and becomes its active tab. While focus
mode is on for the page's domain, the overlay is drawn here with a live
countdown for timed sessions.

Type "g" and Enter to give up a timed session, "o" to turn focus off.
Interrupt to close the page.`,
	Args: cobra.ExactArgs(1),
	RunE: runPage,
}

func runPage(cmd *cobra.Command, args []string) error {
	pageURL := args[0]
	pageDomain, err := domain.HostnameOf(pageURL)
	if err != nil {
		return fmt.Errorf("%w: %s", err, pageURL)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger := logging.NewOrNop(cfg.Log, false).With(zap.String("context", "page"))
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	c := client.New(cfg.Server.Addr)
	page, err := c.OpenPage(ctx, pageURL)
	if err != nil {
		return explain(err)
	}
	defer page.Close()

	logger.Info("page opened", zap.String("tab_id", page.Tab().ID), zap.String("domain", pageDomain))
	fmt.Printf("Page %s open (tab %s). Waiting for focus mode...\n", pageDomain, page.Tab().ID)

	clock := domain.SystemClock{}
	themes := theme.NewRegistry()
	sessions := session.NewStore(c.Storage(), logger)
	focus := usecase.NewFocusService(sessions, c.Alarms(), themes, clock, logger)

	surface := overlay.NewTerminalSurface(os.Stdout, true)
	go surface.Listen(ctx, os.Stdin)

	controller := overlay.NewController(pageDomain, sessions, focus, page, themes, surface, clock,
		cfg.Focus.TickInterval, logger)

	err = controller.Run(ctx, page.Reloads())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	if err == nil {
		if connErr := page.Err(); connErr != nil {
			return fmt.Errorf("lost connection to host: %w", connErr)
		}
	}
	return err
}
