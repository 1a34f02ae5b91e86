package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hanzong05/aimddlwr/internal/crypto"
	"github.com/hanzong05/aimddlwr/internal/llm"
	"github.com/hanzong05/aimddlwr/internal/notify"
	"github.com/hanzong05/aimddlwr/internal/repository"
	"github.com/hanzong05/aimddlwr/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run migrations and start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repository.MigrateDB(db, log); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	keyManager, err := crypto.NewKeyManager(cfg.Security.MasterKey)
	if err != nil {
		return fmt.Errorf("failed to initialize KeyManager: %w", err)
	}
	if keyManager.Enabled() {
		log.Info("KeyManager initialized, memories are sealed at rest")
	} else {
		log.Warn("No master key configured, memories are stored in plain text")
	}

	deps := server.Deps{KeyManager: keyManager, Notifier: notify.Nop{}}

	client, err := llm.NewMultiProviderClient(llm.MultiProviderConfig{
		Providers:   cfg.LLM.Providers,
		MaxFailures: cfg.LLM.MaxFailuresBeforeSwitch,
	}, log)
	switch {
	case err == nil:
		defer client.Close()
		deps.Generator = client
	case errors.Is(err, llm.ErrNoProviders):
		log.Warn("No external model providers available, replies come from local tiers only")
	default:
		return fmt.Errorf("failed to initialize external model client: %w", err)
	}

	if cfg.Notifications.Telegram.Enabled {
		bot, err := notify.NewTelegram(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID, log)
		if err != nil {
			log.Warn("Failed to initialize Telegram notifier, continuing without it", zap.Error(err))
		} else {
			deps.Notifier = bot
		}
	}

	srv := server.NewServer(db, cfg, deps, log)

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(srv.Run)
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Application stopped.")
	return nil
}
