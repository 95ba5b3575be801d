package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"itsm-knowledge-base/config"
	"itsm-knowledge-base/storage"

	"github.com/spf13/cobra"
)

var (
	storageDriver string
	dataDir       string

	rootCmd = &cobra.Command{
		Use:   "kb",
		Short: "ITSM knowledge base service",
		Long: `kb serves the knowledge article API: articles with version history,
edit locks, comments and categories.`,
		SilenceUsage: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&storageDriver, "storage", "", "storage driver (json, badger, postgres, sqlite, memory); overrides STORAGE_DRIVER")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory; overrides DATA_DIR")

	rootCmd.AddCommand(serveCmd, reconcileCmd, sweepCmd)
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads configuration, applies flag overrides and installs the
// default logger.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if storageDriver != "" {
		cfg.StorageDriver = storageDriver
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	slog.SetDefault(config.NewLogger(os.Stderr, cfg.LogLevel, cfg.LogFormat))
	return cfg, nil
}

func openStorage(cfg *config.Config) (storage.Backend, error) {
	backend, err := storage.Open(storage.Options{
		Driver:  cfg.StorageDriver,
		DataDir: cfg.DataDir,
		DSN:     cfg.DBDSN,
		Logger:  slog.Default(),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s storage: %w", cfg.StorageDriver, err)
	}
	return backend, nil
}
