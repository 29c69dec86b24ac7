package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"velora-scenario-service/internal/app"
	"velora-scenario-service/internal/catalog"
	"velora-scenario-service/internal/config"
	"velora-scenario-service/internal/domain"
	"velora-scenario-service/internal/infra/memory"
	"velora-scenario-service/internal/infra/postgres"
	redisinfra "velora-scenario-service/internal/infra/redis"
	"velora-scenario-service/internal/logger"
)

type catalogBackend interface {
	app.Catalog
	LoadScenario(ctx context.Context, scenarioID string) (domain.Scenario, error)
}

type progressBackend interface {
	app.ProgressStore
	app.ProgressReader
}

// backends holds the storage picked from config: Postgres when a URL is set,
// otherwise the catalog file in memory. Redis is optional either way.
type backends struct {
	catalog   catalogBackend
	progress  progressBackend
	scenarios app.ScenarioRepository
	redis     *redis.Client
	closers   []func()
}

func openBackends(ctx context.Context, cfg config.Config, log *logger.Logger) (*backends, error) {
	b := &backends{}
	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg, log); err != nil {
			return nil, err
		}
		db := postgres.OpenBun(cfg.Postgres.URL)
		b.closers = append(b.closers, func() { _ = db.Close() })
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		b.catalog = postgres.NewCatalogStore(db)
		b.progress = postgres.NewProgressStore(pool)
	} else {
		if cfg.Quiz.CatalogPath == "" {
			return nil, fmt.Errorf("either postgres.url or quiz.catalog_path must be configured")
		}
		bundle, err := catalog.Load(cfg.Quiz.CatalogPath)
		if err != nil {
			return nil, err
		}
		static := memory.NewStaticCatalog(bundle)
		b.catalog = static
		b.progress = memory.NewProgressStore(static)
		log.Warn("postgres not configured, progress is kept in memory", "catalog_path", cfg.Quiz.CatalogPath)
	}

	scenarioTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	if cfg.Redis.Addr != "" {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, func() { _ = b.redis.Close() })
		b.scenarios = redisinfra.NewScenarioRepository(b.redis, b.catalog, scenarioTTL, log)
	} else {
		b.scenarios = memory.NewScenarioRepository(b.catalog, scenarioTTL)
	}
	return b, nil
}

// Close releases connections in reverse order of opening.
func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}
