package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbehnke/bts-codec/pkg/config"
	"github.com/dbehnke/bts-codec/pkg/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "bts-codec",
		Short: "GSM/EDGE channel coding engine",
		Long: `bts-codec encodes and decodes the GSM, GPRS and EDGE logical channels
of a base station: xCCH, RACH, SCH, PDTCH (CS-1..4, MCS-1..9) and the
FR, EFR, HR and AMR traffic channels. It runs one-shot from the command
line or as a service with a JSON API, a live decode stream and metrics.`,
		Version:       fmt.Sprintf("%s (built at %s)", Version, BuildTime),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (overrides config)")

	rootCmd.AddCommand(
		newServeCmd(),
		newEncodeCmd(),
		newDecodeCmd(),
		newSelfTestCmd(),
		newSchemesCmd(),
	)
	return rootCmd
}

// loadConfig reads the configuration named by --config and applies the
// global overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	configFile, _ := cmd.Flags().GetString("config")
	debugOverride, _ := cmd.Flags().GetBool("debug")

	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load configuration: %w", err)
	}
	if debugOverride {
		cfg.Logging.Level = "debug"
	}
	return cfg, configFile, nil
}

// newLogger builds the logger from config. One-shot commands log to
// stderr so their stdout stays parseable.
func newLogger(cfg *config.Config, out io.Writer) (*logger.Logger, error) {
	log, err := logger.New(logger.Config{
		Level:       cfg.Logging.Level,
		Format:      cfg.Logging.Format,
		File:        cfg.Logging.File,
		MaxSize:     cfg.Logging.MaxSize,
		MaxBackups:  cfg.Logging.MaxBackups,
		MaxAge:      cfg.Logging.MaxAge,
		Development: cfg.Logging.Level == "debug",
		Output:      out,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return log, nil
}
