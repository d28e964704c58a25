package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
	"onlyconnect-service/internal/config"
	pgloader "onlyconnect-service/internal/infra/postgres"
	pgmigrations "onlyconnect-service/internal/infra/postgres/migrations"
	redisinfra "onlyconnect-service/internal/infra/redis"
)

// NewMigrateCmd applies the quiz definition schema.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			logger := newLogger(cfg)
			if err := runMigrations(cmd.Context(), cfg, logger); err != nil {
				return err
			}
			if !seed {
				return nil
			}
			return seedSampleQuizzes(cmd.Context(), cfg, logger)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed", false, "upsert the built-in sample quiz after migrating")
	return cmd
}

func seedSampleQuizzes(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := pgloader.NewQuizLoader(pool)
	var cache *redisinfra.QuizRepository
	if cfg.Redis.Addr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		cache = redisinfra.NewQuizRepository(client, loader, cfg.Redis.Prefix, config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute))
	}
	for _, quiz := range sampleQuizzes() {
		if err := loader.SaveQuiz(ctx, quiz); err != nil {
			return err
		}
		// servers share cached definitions through redis
		if cache != nil {
			if err := cache.Invalidate(ctx, quiz.ID); err != nil {
				logger.Warn("quiz cache not invalidated", "quiz", quiz.ID, "error", err)
			}
		}
		logger.Info("sample quiz saved", "quiz", quiz.ID)
	}
	return nil
}

func runMigrations(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		logger.Info("database schema up to date")
		return nil
	}
	logger.Info("migrations applied", "group", group.String())
	return nil
}
