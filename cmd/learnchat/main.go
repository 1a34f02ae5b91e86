package main

import (
	"fmt"
	"os"

	"github.com/hanzong05/aimddlwr/internal/config"
	"github.com/hanzong05/aimddlwr/internal/logger"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	// Global flags
	configPath string

	cfg *config.Config
	log *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "learnchat",
	Short: "learnchat - a chat backend that learns replies from its users",
	Long: `learnchat serves a JSON API for chatting with a self-improving assistant.

Replies come from learned patterns, an optional external model, a keyword
scorer over user-curated training data, or category templates. Feedback
adjusts pattern confidence and simulated training runs produce model versions.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		log, err = logger.New(cfg.Log.Mode, cfg.Log.Level)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			_ = log.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yml", "path to the YAML config file")

	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd)
}

func openDB() (*sqlx.DB, error) {
	db, err := repository.NewDB(cfg.Database.Type, cfg.Database.URL, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
