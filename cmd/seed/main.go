// seed loads demo users, knowledge-base articles and tickets from a YAML
// fixture file into Postgres. Records that already exist are skipped, so the
// command can be re-run after editing the file.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/clock"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/persistence"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/seed"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var fixturesPath string
	var envFile string
	var dryRun bool

	flagSet := pflag.NewFlagSet("seed", pflag.ContinueOnError)
	flagSet.StringVar(&fixturesPath, "fixtures", "seed/fixtures.yaml", "path to the YAML fixture file")
	flagSet.StringVar(&envFile, "env-file", "", "load environment variables from this file before reading config")
	flagSet.BoolVar(&dryRun, "dry-run", false, "validate the fixture file without touching the database")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("load env file: %w", err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	fixtures, err := seed.Load(fixturesPath)
	if err != nil {
		return err
	}
	if err := fixtures.Validate(cfg.Auth.MinPasswordLength); err != nil {
		return fmt.Errorf("invalid fixtures:\n%w", err)
	}
	if dryRun {
		logger.Info("fixtures valid",
			zap.String("path", fixturesPath),
			zap.Int("users", len(fixtures.Users)),
			zap.Int("articles", len(fixtures.Articles)),
			zap.Int("tickets", len(fixtures.Tickets)))
		return nil
	}

	ctx := context.Background()
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		return err
	}
	defer pg.Close()
	if !pg.Enabled() {
		return errors.New("POSTGRES_DSN is required; set APP_SEED_FIXTURES to seed the in-memory store at start-up")
	}
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			return err
		}
	}

	pool := pg.PoolHandle()
	seeder := &seed.Seeder{
		Users:      repository.NewUserRepository(pool),
		Tickets:    repository.NewTicketRepository(pool),
		Articles:   repository.NewArticleRepository(pool),
		BcryptCost: cfg.Auth.BcryptCost,
		Clock:      clock.Real(),
		Logger:     logger,
	}
	res, err := seeder.Apply(ctx, fixtures)
	if err != nil {
		return err
	}
	logger.Info("seed complete",
		zap.Int("users_created", res.UsersCreated),
		zap.Int("users_skipped", res.UsersSkipped),
		zap.Int("articles_created", res.ArticlesCreated),
		zap.Int("tickets_created", res.TicketsCreated))
	return nil
}
