// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/netanon/internal/config"
	"firestige.xyz/netanon/internal/log"
	"firestige.xyz/netanon/internal/metrics"
)

var (
	// Global flags
	configFile     string
	partitionsFile string
	logLevel       string

	// globalCfg is loaded once by the root PersistentPreRunE.
	globalCfg *config.GlobalConfig
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "netanon",
	Short: "netanon - capture anonymization and metadata extraction toolkit",
	Long: `netanon extracts, anonymizes and summarizes network traffic captures.

It rewrites public IPv4 addresses in pcap/pcapng files with synthetic
addresses drawn from per-application subnets, keeps the mapping stable for
the whole run and records which private host talked to which public peer.

Commands:
  anonymize      rewrite public addresses and write the audit table
  extract        per-packet metadata and payload CSV tables
  associations   packet counts per address/port association
  ports          unique destination ports
  destinations   destination addresses contacted by given sources
  substitute     group-based address substitution in CSV tables
  validate       check configuration and partition table`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults only when empty)")
	rootCmd.PersistentFlags().StringVar(&partitionsFile, "partitions", "",
		"standalone partition table YAML, replaces config partitions")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override log level (debug|info|warn|error)")

	// Add subcommands
	rootCmd.AddCommand(anonymizeCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(associationsCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(destinationsCmd)
	rootCmd.AddCommand(substituteCmd)
	rootCmd.AddCommand(validateCmd)
}

// setup loads configuration and initializes logging before any command runs.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(configFile, partitionsFile, logLevel)
	if err != nil {
		return err
	}
	if err := log.Init(cfg.Log); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	globalCfg = cfg
	slog.Debug("configuration loaded", "config", configFile, "partitions", len(cfg.Partitions))
	return nil
}

// loadConfig reads the config file, applies the partition file and log level
// overrides and validates the result.
func loadConfig(path, partitions, level string) (*config.GlobalConfig, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if partitions != "" {
		parts, err := config.LoadPartitionFile(partitions)
		if err != nil {
			return nil, err
		}
		cfg.Partitions = parts
	}
	if level != "" {
		cfg.Log.Level = level
	}
	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// startMetrics serves Prometheus metrics while a command runs, if enabled.
func startMetrics(ctx context.Context, cfg config.MetricsConfig) func() {
	if !cfg.Enabled {
		return func() {}
	}
	srv := metrics.NewServer(cfg.Listen, cfg.Path)
	if err := srv.Start(ctx); err != nil {
		slog.Warn("metrics server not started", "error", err)
		return func() {}
	}
	return func() {
		if err := srv.Stop(context.Background()); err != nil {
			slog.Warn("metrics server stop failed", "error", err)
		}
	}
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
