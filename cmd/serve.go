package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tgardela/event-manager/internal/auth"
	"github.com/tgardela/event-manager/internal/clock"
	"github.com/tgardela/event-manager/internal/config"
	"github.com/tgardela/event-manager/internal/database"
	"github.com/tgardela/event-manager/internal/handler"
	"github.com/tgardela/event-manager/internal/repository"
	"github.com/tgardela/event-manager/internal/service"
	"github.com/tgardela/event-manager/internal/telemetry"
)

var (
	// Server flags (override env)
	serverHost     string
	serverPort     int
	migrateOnStart bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the HTTP server and begin accepting API requests.

Configuration comes from environment variables, optionally loaded from a
.env file in the working directory. SIGINT and SIGTERM trigger a graceful
shutdown.

Examples:
  event-manager serve
  event-manager serve --port 9090 --log-format console
  event-manager serve --migrate`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVar(&serverHost, "host", "", "server host address (default: 0.0.0.0)")
	serveCmd.Flags().IntVar(&serverPort, "port", 0, "server port (default: 8080)")
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply pending migrations before serving")
}

func runServer(parent context.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serverHost != "" {
		cfg.Server.Host = serverHost
	}
	if serverPort != 0 {
		cfg.Server.Port = serverPort
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger := config.NewLogger(cfg.Logging)
	logger.Info().Str("version", Version).Str("environment", cfg.Environment).Msg("starting event-manager")

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.InitTracing(ctx, cfg.Tracing, Version)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}

	if migrateOnStart {
		if err := database.MigrateUp(cfg.Database.URL); err != nil {
			return err
		}
		logger.Info().Msg("migrations applied")
	}

	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()

	events := repository.NewEventRepository(pool)
	users := repository.NewUserRepository(pool)
	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTTL, cfg.Auth.RefreshTTL, cfg.Auth.Issuer)
	clk := clock.System{}

	router := handler.NewRouter(handler.Deps{
		Events: service.NewEventService(events, users, clk, logger,
			service.WithRetry(cfg.Roster.MaxAttempts, cfg.Roster.Backoff)),
		Users:              service.NewUserService(users, tokens, clk, logger),
		Tokens:             tokens,
		Health:             events,
		Logger:             logger,
		CORSOrigins:        cfg.Server.CORSOrigins,
		LoginRatePerMinute: cfg.Server.LoginRatePerMinute,
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown: %w", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("tracing shutdown")
		}
		logger.Info().Msg("server stopped")
		return nil
	})

	return g.Wait()
}
