package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"guildbot/internal/config"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Inspect the guild settings file",
}

var settingsValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the guild settings file",
	RunE:  runSettingsValidate,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the guild settings as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		settings, err := config.LoadSettings(cfg.SettingsFile)
		if err != nil {
			return err
		}
		data, err := settings.JSON()
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, string(data))
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsValidateCmd, settingsShowCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Configuration validation failed: %v\n", err)
		return err
	}
	settings, err := config.LoadSettings(cfg.SettingsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "❌ Settings could not be read: %v\n", err)
		return err
	}
	if err := settings.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Settings validation failed: %v\n", err)
		return err
	}

	fmt.Fprintf(os.Stdout, "✅ Settings are valid: %s\n", cfg.SettingsFile)

	var missing []string
	for _, key := range []string{
		config.KeyLogChannel,
		config.KeyErrorChannel,
		config.KeyErrorUser,
		config.KeyAdminUser,
		config.KeyActivityChannel,
		config.KeyConfigChannel,
	} {
		if settings.ID(key) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		yellow := color.New(color.FgYellow, color.Bold)
		yellow.Fprintf(os.Stdout, "⚠️  %d key(s) not set, the matching features stay quiet:\n", len(missing))
		for _, key := range missing {
			yellow.Fprintf(os.Stdout, "   - %s\n", key)
		}
	}
	return nil
}
