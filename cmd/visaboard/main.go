// Package main implements the visaboard binary: the H-1B dashboard server
// and a terminal summary of the same aggregations.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/visaboard/visaboard/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

// Flags shared by every subcommand.
var (
	configFile  string
	dataDir     string
	datasetPath string
	storageType string
	storagePath string
	logLevel    string
)

var rootCmd = &cobra.Command{
	Use:   "visaboard",
	Short: "H-1B visa approval and denial dashboard",
	Long: `visaboard loads an H-1B employer export and serves an interactive
dashboard of approvals and denials by employer and zip code.

Configuration is layered: defaults, then --config (YAML or JSON), then
VISABOARD_* environment variables, then command line flags.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "visaboard version %s (commit: %s)\n", version, commit)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	pf.StringVar(&dataDir, "data-dir", "", "Base directory for cache files")
	pf.StringVar(&datasetPath, "data", "", "Object path of the dataset export")
	pf.StringVar(&storageType, "storage", "", "Storage type: local or s3")
	pf.StringVar(&storagePath, "storage-path", "", "Base directory for local storage")
	pf.StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")

	rootCmd.AddCommand(serveCmd, summarizeCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	if err := config.LoadFromEnv(cfg); err != nil {
		return nil, err
	}

	// flags have the highest priority
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if datasetPath != "" {
		cfg.Dataset.Path = datasetPath
	}
	if storageType != "" {
		cfg.Storage.Type = storageType
	}
	if storagePath != "" {
		cfg.Storage.Path = storagePath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	return cfg, nil
}
