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
	"golang.org/x/sync/errgroup"

	"github.com/eliteGoblin/focusd/site_focus/internal/config"
	"github.com/eliteGoblin/focusd/site_focus/internal/daemon"
	"github.com/eliteGoblin/focusd/site_focus/internal/domain"
	"github.com/eliteGoblin/focusd/site_focus/internal/infra"
	"github.com/eliteGoblin/focusd/site_focus/internal/logging"
	"github.com/eliteGoblin/focusd/site_focus/internal/server"
	"github.com/eliteGoblin/focusd/site_focus/internal/session"
	"github.com/eliteGoblin/focusd/site_focus/internal/theme"
	"github.com/eliteGoblin/focusd/site_focus/internal/usecase"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the sitefocus host",
	Long: `Runs the host process: the session store, focus timers, completion
notifications and the API used by pages and popup commands.

On start the host ends any timed session that expired while it was down.
Use --detach to run it in the background.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if detach {
		return startDetached(cmd.Context(), cfg)
	}

	logger, err := logging.New(cfg.Log, true)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("host stopped with error", zap.Error(err))
		return err
	}
	logger.Info("host stopped")
	return nil
}

// serve wires the host components and runs them until ctx is canceled.
func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	clock := domain.SystemClock{}

	bus := infra.NewChangeBus(logger)
	defer func() { _ = bus.Close() }()

	backend, err := infra.OpenStorage(cfg.Storage.Driver, cfg.Storage.DataDir, bus, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() { _ = backend.Close() }()

	alarms := infra.NewTimerAlarms(clock, 16, logger)
	defer alarms.Stop()

	notifier := infra.NewDesktopNotifier(cfg.Notify.Enabled, cfg.Notify.Icon, logger)
	tabs := infra.NewTabRegistry(clock, logger)

	sessions := session.NewStore(backend, logger)
	themes := theme.NewRegistry()
	focus := usecase.NewFocusService(sessions, alarms, themes, clock, logger)
	popup := usecase.NewPopup(tabs, focus, sessions, themes, clock,
		cfg.Focus.Durations, cfg.Focus.DefaultMinutes, logger)

	ln, err := server.Listen(cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr, err)
	}

	now := clock.Now()
	host := domain.HostInfo{
		PID:           os.Getpid(),
		Addr:          ln.Addr().String(),
		Version:       Version,
		StartedAt:     now.Unix(),
		LastHeartbeat: now.Unix(),
	}

	bgConfig := daemon.DefaultBackgroundConfig()
	bgConfig.IconURL = cfg.Notify.Icon
	background := daemon.NewBackground(bgConfig, sessions, alarms, notifier, backend, clock, host, logger)

	srv := server.New(server.Deps{
		Popup:   popup,
		Storage: backend,
		Alarms:  alarms,
		Feed:    bus,
		Tabs:    tabs,
		Host:    host,
		Logger:  logger,
	})

	logger.Info("host starting",
		zap.String("version", Version),
		zap.String("config", cfg.Path),
		zap.String("storage", cfg.Storage.Driver),
		zap.String("data_dir", cfg.Storage.DataDir))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := background.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return srv.Serve(gctx, ln)
	})
	return g.Wait()
}
