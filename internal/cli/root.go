// Package cli provides the command-line interface for fxwatch.
package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"fxwatch/internal/config"
)

// Version and Commit are set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:          "fxwatch",
	Short:        "Watch FX research sources and deliver AI summaries",
	Long:         "fxwatch polls FX research pages and feeds, summarizes new articles per currency, and delivers them to Telegram subscribers and an email newsletter.",
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "fxwatch %s (%s)\n", Version, Commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./configs", "config directory or config.yaml path")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// loadConfig reads the configuration and builds the process logger.
func loadConfig() (config.Config, *logrus.Logger, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := newLogger(cfg.Log)
	if err != nil {
		return config.Config{}, nil, err
	}
	return cfg, log, nil
}

// newLogger builds a logger writing JSON (or text) to stderr, keeping stdout
// for command output.
func newLogger(lc config.LogConfig) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(os.Stderr)

	switch strings.ToLower(lc.Format) {
	case "", "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return nil, fmt.Errorf("log.format must be json or text, got %q", lc.Format)
	}

	level := logrus.InfoLevel
	if lc.Level != "" {
		var err error
		if level, err = logrus.ParseLevel(lc.Level); err != nil {
			return nil, fmt.Errorf("log.level: %w", err)
		}
	}
	log.SetLevel(level)
	return log, nil
}
