package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/PabloGalante/quiet-room/internal/config"
	"github.com/PabloGalante/quiet-room/internal/observability"
)

var (
	configPath string
	cfg        *config.Config

	flagVendor      string
	flagModel       string
	flagTemperature float32
	flagHistory     int
	flagCredBackend string
	flagCredPath    string
	flagLogLevel    string
	flagLogFormat   string

	version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "quietroom",
	Short: "A quiet room shared by a human witness and a remote model",
	Long: `quietroom runs a turn-based session between you (the Witness) and a
remote language model (the Architect). The Architect first decides whether to
engage, then the two of you take turns on a shared canvas.

Quick Start:
  quietroom key set sk-ant-...     # store the vendor key locally
  quietroom room                   # open the terminal room
  quietroom serve --port 8080      # expose the room over HTTP`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		applyFlags(cmd, loaded)
		if err := loaded.Validate(); err != nil {
			return err
		}
		cfg = loaded
		observability.Setup(os.Stderr, cfg.LogFormat, cfg.LogLevel)
		return nil
	},
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// applyFlags overlays explicitly set flags on the loaded config.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("vendor") {
		c.Vendor = flagVendor
	}
	if flags.Changed("model") {
		c.Model = flagModel
	}
	if flags.Changed("temperature") {
		c.Temperature = flagTemperature
	}
	if flags.Changed("history") {
		c.HistoryLimit = flagHistory
	}
	if flags.Changed("credential-backend") {
		c.CredentialBackend = config.CredentialBackend(flagCredBackend)
	}
	if flags.Changed("credential-path") {
		c.CredentialPath = flagCredPath
	}
	if flags.Changed("log-level") {
		c.LogLevel = flagLogLevel
	}
	if flags.Changed("log-format") {
		c.LogFormat = flagLogFormat
	}
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "Path to a yaml config file (default $QUIET_ROOM_CONFIG)")
	pf.StringVar(&flagVendor, "vendor", "", "Model vendor: anthropic, openai, gemini or mock")
	pf.StringVar(&flagModel, "model", "", "Model name (vendor default when empty)")
	pf.Float32Var(&flagTemperature, "temperature", 0, "Sampling temperature")
	pf.IntVar(&flagHistory, "history", 0, "Number of prior messages replayed each turn")
	pf.StringVar(&flagCredBackend, "credential-backend", "", "Where the key is kept: memory or sqlite")
	pf.StringVar(&flagCredPath, "credential-path", "", "SQLite file for the key")
	pf.StringVar(&flagLogLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&flagLogFormat, "log-format", "", "Log format: json or text")

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
