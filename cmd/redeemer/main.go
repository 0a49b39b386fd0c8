// Package main is the entry point for the code redemption service.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"shift-code-redeemer/internal/api"
	"shift-code-redeemer/internal/config"
	"shift-code-redeemer/internal/feed"
	"shift-code-redeemer/internal/ingest"
	"shift-code-redeemer/internal/notify"
	"shift-code-redeemer/internal/pkg/db"
	"shift-code-redeemer/internal/pkg/secret"
	"shift-code-redeemer/internal/portal"
	"shift-code-redeemer/internal/redeem"
	"shift-code-redeemer/internal/repository"
)

func main() {
	// Configure zerolog
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := runMigrations(ctx, dbPool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	secrets, err := secret.NewBoxFromHex(cfg.Crypto.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize credential encryption")
	}

	// Repositories
	codeRepo := repository.NewCodeRepository(dbPool.Pool)
	userRepo := repository.NewUserRepository(dbPool.Pool)
	prefRepo := repository.NewPreferenceRepository(dbPool.Pool)
	attemptRepo := repository.NewAttemptRepository(dbPool.Pool)

	// Ingestion
	archive := feed.NewArchiveClient(cfg.Feeds.ArchiveURL, cfg.Feeds.FetchTimeout)
	ingester := ingest.NewService(codeRepo, archive, nil)

	// Redemption
	orchestrator := redeem.NewOrchestrator(codeRepo, attemptRepo, prefRepo, userRepo, notify.LogNotifier{})
	sessionFactory := func(_ context.Context) (redeem.Session, error) {
		agent := portal.NewRemoteAgent(cfg.Portal.DriverURL, cfg.Portal.CallTimeout)
		return portal.NewSession(agent, cfg.Portal.HomeURL, cfg.Portal.RewardsURL, cfg.Portal.CallTimeout), nil
	}
	scheduler := redeem.NewScheduler(userRepo, orchestrator, sessionFactory, secrets, cfg.Scheduler.MaxConcurrent)

	// Admin API
	server := api.NewServer(codeRepo, userRepo, prefRepo, attemptRepo, secrets)

	// Shut everything down on SIGINT/SIGTERM.
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return ingester.Start(ctx, cfg.Feeds.PollInterval)
	})
	g.Go(func() error {
		if cfg.Portal.DriverURL == "" {
			log.Warn().Msg("No browser driver configured; redemption sweeps disabled")
			<-ctx.Done()
			return ctx.Err()
		}
		return scheduler.Start(ctx, cfg.Scheduler.Interval)
	})
	g.Go(func() error {
		return server.Run(ctx, cfg.API.Addr)
	})

	log.Info().Msg("Service is starting...")
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("Service terminated")
	}
	log.Info().Msg("Service stopped gracefully")
}

// runMigrations executes database migrations.
func runMigrations(ctx context.Context, pool *db.Pool) error {
	log.Info().Msg("Running database migrations...")

	// Migration 1: Create users table
	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS users (
			id BIGSERIAL PRIMARY KEY,
			portal_email VARCHAR(255) NOT NULL UNIQUE,
			portal_password BYTEA NOT NULL,
			notify_must_launch_game BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 1: users table created")

	// Migration 2: Create codes table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS codes (
			id BIGSERIAL PRIMARY KEY,
			game VARCHAR(255) NOT NULL,
			platform VARCHAR(64) NOT NULL,
			code VARCHAR(64) NOT NULL,
			type VARCHAR(32) NOT NULL,
			reward TEXT NOT NULL DEFAULT 'Unknown',
			time_gathered TIMESTAMPTZ,
			expires TIMESTAMPTZ,
			attempts INT NOT NULL DEFAULT 0,
			is_valid BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (game, code)
		);
		CREATE INDEX IF NOT EXISTS idx_codes_valid ON codes(is_valid) WHERE is_valid;
		CREATE INDEX IF NOT EXISTS idx_codes_code ON codes(code);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 2: codes table created")

	// Migration 3: Create preference table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS user_game_preferences (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			game VARCHAR(255) NOT NULL,
			platform VARCHAR(64) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, game, platform)
		);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 3: user_game_preferences table created")

	// Migration 4: Create attempt table
	_, err = pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS user_code_attempts (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			code_id BIGINT NOT NULL REFERENCES codes(id) ON DELETE CASCADE,
			game VARCHAR(255) NOT NULL,
			platform VARCHAR(64) NOT NULL,
			success BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (user_id, code_id, game, platform)
		);
		CREATE INDEX IF NOT EXISTS idx_attempts_user ON user_code_attempts(user_id);
	`)
	if err != nil {
		return err
	}
	log.Info().Msg("Migration 4: user_code_attempts table created")

	return nil
}
