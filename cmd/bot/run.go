package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"guildbot/internal/birthday"
	"guildbot/internal/config"
	"guildbot/internal/counting"
	"guildbot/internal/database"
	"guildbot/internal/discord"
	"guildbot/internal/metrics"
	"guildbot/internal/tracker"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect to Discord and start tracking",
	Long:  `Connect to the Discord gateway, track activity and voice time, and serve all bot commands until interrupted.`,
	RunE:  runBot,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBot(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireToken(); err != nil {
		return err
	}

	logger.Info().
		Str("version", version).
		Str("config", configPath).
		Msg("Starting guildbot")

	settings, err := loadSettings(cfg)
	if err != nil {
		return err
	}
	logger.Info().Str("path", cfg.SettingsFile).Int("keys", len(settings.Keys())).Msg("Settings loaded")

	store, err := openStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error().Err(err).Msg("Failed to close store")
		}
	}()

	tcfg, err := trackerConfig(cfg, settings)
	if err != nil {
		return err
	}
	tr := tracker.New(store, tcfg, logger)

	// The archive is optional
	if cfg.DatabaseDSN != "" {
		db, err := database.New(cfg.DatabaseDSN, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize database: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Error().Err(err).Msg("Failed to close database")
			}
		}()
		tr.SetArchiver(database.NewRepository(db))
		logger.Info().Msg("Period archive enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := tr.Load(ctx); err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	game := counting.NewGame(store, settings.ID(config.KeyCountingChannel))
	if err := game.Load(ctx); err != nil {
		return err
	}

	bot, err := discord.New(cfg.DiscordToken, settings, logger,
		discord.NewActivityModule(tr, cfg.Tracker.StartupGrace),
		discord.NewCountingModule(game),
		discord.NewBirthdayModule(birthday.NewRegistry(store)),
		discord.NewRolesModule(),
		discord.NewTriggerModule(),
		discord.NewSettingsModule(tr),
	)
	if err != nil {
		return err
	}

	var metricsServer *metrics.Server
	if cfg.Metrics.Addr != "" {
		metricsServer = metrics.NewServer(cfg.Metrics.Addr, logger)
		metricsServer.Start()
	}

	// The tracker outlives the gateway so its final save sees every event.
	trackerCtx, stopTracker := context.WithCancel(context.Background())
	defer stopTracker()
	trackerDone := make(chan error, 1)
	go func() { trackerDone <- tr.Run(trackerCtx) }()

	if err := bot.Start(ctx); err != nil {
		stopTracker()
		<-trackerDone
		return err
	}
	logger.Info().Msg("guildbot startup complete")

	<-ctx.Done()
	logger.Info().Msg("Shutdown signal received, gracefully stopping...")

	if err := bot.Stop(); err != nil {
		logger.Error().Err(err).Msg("Error closing Discord session")
	}
	stopTracker()
	if err := <-trackerDone; err != nil {
		logger.Error().Err(err).Msg("Final ledger save failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Stop(); err != nil {
			logger.Error().Err(err).Msg("Error stopping metrics server")
		}
	}

	logger.Info().Msg("guildbot stopped")
	return nil
}
