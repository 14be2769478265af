package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"guildbot/internal/config"
	"guildbot/internal/storage"
	"guildbot/internal/tracker"
)

var (
	version    = "dev"
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "guildbot",
	Short: "guildbot - Discord community bot with activity and voice leaderboards",
	Long: `guildbot tracks how long members play and sit in voice channels, posts
weekly leaderboards, and runs the community glue: birthdays, the counting game,
reaction roles and runtime configuration.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// Default to the run command when no subcommand is provided
		return runBot(cmd, args)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default ./config.yaml if present)")
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// setupLogger configures the logger based on configuration
func setupLogger(cfg config.LoggingConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var logger zerolog.Logger
	if cfg.Format == "json" {
		logger = zerolog.New(os.Stdout).With().Timestamp().Logger()
	} else {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.DateTime}).With().Timestamp().Logger()
	}
	log.Logger = logger
	return logger
}

// loadConfig loads process configuration and sets up logging.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, setupLogger(cfg.Logging), nil
}

// openStore opens the configured document store.
func openStore(cfg *config.Config, logger zerolog.Logger) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "redis":
		store, err := storage.OpenRedis(cfg.Storage.Redis)
		if err != nil {
			return nil, err
		}
		logger.Info().
			Str("host", cfg.Storage.Redis.Host).
			Int("port", cfg.Storage.Redis.Port).
			Str("prefix", cfg.Storage.Redis.KeyPrefix).
			Msg("Using redis store")
		return store, nil
	default:
		store, err := storage.NewFileStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}
		logger.Info().Str("dir", store.Root()).Msg("Using file store")
		return store, nil
	}
}

// loadSettings reads the guild settings and checks them.
func loadSettings(cfg *config.Config) (*config.Settings, error) {
	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		return nil, err
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", cfg.SettingsFile, err)
	}
	return settings, nil
}

// trackerConfig combines the process intervals with the guild's period
// schedule.
func trackerConfig(cfg *config.Config, settings *config.Settings) (tracker.Config, error) {
	weekday, hour, loc, err := settings.PeriodBoundary()
	if err != nil {
		return tracker.Config{}, err
	}
	return tracker.Config{
		Blacklist:           settings.Blacklist(),
		UpdateInterval:      cfg.Tracker.UpdateInterval,
		SaveInterval:        cfg.Tracker.SaveInterval,
		PeriodCheckInterval: cfg.Tracker.PeriodCheckInterval,
		Schedule:            tracker.Schedule{Weekday: weekday, Hour: hour, Location: loc},
	}, nil
}
