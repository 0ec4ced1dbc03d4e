package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/healthvault-api/internal/application/notification"
	"github.com/healthvault-api/internal/config"
	"github.com/healthvault-api/internal/infrastructure/dynamo"
	jwtinfra "github.com/healthvault-api/internal/infrastructure/jwt"
	"github.com/healthvault-api/internal/infrastructure/memory"
	"github.com/healthvault-api/internal/infrastructure/postgres"
	"github.com/healthvault-api/internal/infrastructure/smtp"
	"github.com/healthvault-api/internal/infrastructure/sns"
	"github.com/healthvault-api/internal/pkg/clock"
	transporthttp "github.com/healthvault-api/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	envErr := godotenv.Load()
	cfg := config.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	if envErr != nil {
		logger.Info("no .env file found, reading from environment")
	}

	if err := run(cfg, logger); err != nil {
		logger.Error("server exited", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx := context.Background()

	jwtProvider, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		return fmt.Errorf("jwt provider: %w", err)
	}

	deps := &transporthttp.Deps{
		JWTProvider: jwtProvider,
		Clock:       clock.System{},
		Logger:      logger,
	}
	closeStore, err := openStore(ctx, cfg, deps, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// SNS SMS sender (optional, phone registration is refused without it).
	var smsSender sns.SMSSender
	if cfg.SMSEnabled {
		if sender, err := sns.NewSender(ctx, cfg); err == nil {
			smsSender = sender
		} else {
			logger.Warn("SNS sender not available", "err", err)
		}
	}
	dispatcher := notification.NewDispatcher(notification.DispatcherDeps{
		Mailer:      smtp.NewMailer(cfg),
		SMS:         smsSender,
		Workers:     cfg.NotifyWorkers,
		QueueSize:   cfg.NotifyQueueSize,
		SendTimeout: cfg.NotifySendTimeout,
		Logger:      logger,
	})
	deps.Notifier = dispatcher

	router := transporthttp.NewRouter(cfg, deps)
	defer router.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("listen: %w", err)
	case <-quit:
	}

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}
	// Handlers are done; flush queued notifications.
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warn("notification queue not drained", "err", err, "stats", dispatcher.Stats())
	}
	logger.Info("server stopped")
	return nil
}

// openStore wires the repos selected by STORE_DRIVER into deps.
func openStore(ctx context.Context, cfg *config.Config, deps *transporthttp.Deps, logger *slog.Logger) (func(), error) {
	switch cfg.StoreDriver {
	case config.StoreDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("dynamo client: %w", err)
		}
		if err := dynamo.Bootstrap(ctx, client, cfg.DynamoTables, logger); err != nil {
			return nil, fmt.Errorf("dynamo bootstrap: %w", err)
		}
		deps.UserRepo = dynamo.NewUserRepo(client, cfg.DynamoTables.Users)
		deps.AttemptRepo = dynamo.NewAttemptRepo(client, cfg.DynamoTables.RegistrationAttempts)
		deps.VerificationRepo = dynamo.NewVerificationRepo(client, cfg.DynamoTables.OtpVerifications)
		return func() {}, nil
	case config.StorePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		deps.UserRepo = postgres.NewUserRepo(pool)
		deps.AttemptRepo = postgres.NewAttemptRepo(pool)
		deps.VerificationRepo = postgres.NewVerificationRepo(pool)
		return pool.Close, nil
	case config.StoreMemory:
		logger.Warn("using in-memory store, data is lost on restart")
		deps.UserRepo = memory.NewUserRepo()
		deps.AttemptRepo = memory.NewAttemptRepo()
		deps.VerificationRepo = memory.NewVerificationRepo()
		return func() {}, nil
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
	}
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
