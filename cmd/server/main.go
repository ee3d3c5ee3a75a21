package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ainet/internal/auth"
	"ainet/internal/chat"
	"ainet/internal/config"
	"ainet/internal/database"
	"ainet/internal/handler"
	"ainet/internal/hub"
	"ainet/internal/logging"
	"ainet/internal/relay"
	"ainet/internal/store"
)

func main() {
	root := &cobra.Command{
		Use:           "ainet",
		Short:         "AINET direct messaging server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(userCmd())
	root.AddCommand(agentCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// bootstrap loads configuration and the logger shared by every command.
func bootstrap() (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logging.New(cfg.Env, cfg.LogLevel), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and WebSocket server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// データベース接続を初期化
	db, dialect, err := database.Open(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info().Str("driver", string(dialect)).Msg("database ready")

	st := store.New(db, logger)
	authenticator := auth.NewAuthenticator(cfg.JWTSecret, st, logger)

	var opts []hub.Option
	rl, err := relay.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to connect relay: %w", err)
	}
	if rl != nil {
		opts = append(opts, hub.WithRelay(rl))
		logger.Info().Str("relay", cfg.Relay).Msg("relay connected")
	}

	h := hub.New(logger, opts...)
	go func() {
		if err := h.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("relay subscription stopped")
		}
	}()

	svc := chat.NewService(st, st, h, logger, chat.Options{
		SendBuffer:      cfg.SendBuffer,
		MaxMessageBytes: cfg.MaxMessageBytes,
	})
	router := handler.New(cfg, st, authenticator, chat.NewGate(authenticator, st), svc, logger).SetupRouter()

	// CORS対応
	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		ExposedHeaders:   []string{"Content-Length"},
		MaxAge:           300,
		AllowCredentials: true,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           c.Handler(router),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().
			Str("port", cfg.ServerPort).
			Str("env", cfg.Env).
			Strs("allowed_origins", cfg.AllowedOrigins).
			Msg("starting AINET server")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			h.Close()
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info().Msg("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}
	// WebSocket 接続は Shutdown の対象外なのでハブから閉じる
	h.Close()

	logger.Info().Msg("server stopped")
	return nil
}
