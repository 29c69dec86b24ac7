package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"velora-scenario-service/internal/domain"
	"velora-scenario-service/internal/logger"
)

// ScenarioLoader fetches scenario content from a backing store.
type ScenarioLoader interface {
	LoadScenario(ctx context.Context, scenarioID string) (domain.Scenario, error)
}

// ScenarioRepository caches whole scenarios in Redis and falls back to a loader on miss.
// Scenarios are stored as: SET scenario:{scenarioID} <json> EX ttl
type ScenarioRepository struct {
	client *redis.Client
	loader ScenarioLoader
	ttl    time.Duration
	log    *logger.Logger
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewScenarioRepository(client *redis.Client, loader ScenarioLoader, ttl time.Duration, log *logger.Logger) *ScenarioRepository {
	if log == nil {
		log = logger.Nop()
	}
	return &ScenarioRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		log:    log.With("component", "scenario_cache"),
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *ScenarioRepository) GetScenario(ctx context.Context, scenarioID string) (domain.Scenario, error) {
	if scenario, ok := r.cached(ctx, scenarioID); ok {
		return scenario, nil
	}

	result, err, _ := r.sf.Do(scenarioID, func() (interface{}, error) {
		// Re-check cache in case another caller filled it.
		if scenario, ok := r.cached(ctx, scenarioID); ok {
			return scenario, nil
		}

		scenario, err := r.loader.LoadScenario(ctx, scenarioID)
		if err != nil {
			return domain.Scenario{}, err
		}

		payload, err := json.Marshal(scenario)
		if err != nil {
			return scenario, nil
		}
		if err := r.client.Set(ctx, r.key(scenarioID), payload, r.ttlWithJitter()).Err(); err != nil {
			r.log.Warn("scenario cache write failed", "scenario_id", scenarioID, "error", err)
		}
		return scenario, nil
	})
	if err != nil {
		return domain.Scenario{}, err
	}
	return result.(domain.Scenario), nil
}

// Invalidate drops a cached scenario, e.g. after a reseed.
func (r *ScenarioRepository) Invalidate(ctx context.Context, scenarioID string) error {
	return r.client.Del(ctx, r.key(scenarioID)).Err()
}

func (r *ScenarioRepository) cached(ctx context.Context, scenarioID string) (domain.Scenario, bool) {
	payload, err := r.client.Get(ctx, r.key(scenarioID)).Bytes()
	if err != nil {
		if err != redis.Nil {
			r.log.Warn("scenario cache read failed", "scenario_id", scenarioID, "error", err)
		}
		return domain.Scenario{}, false
	}
	var scenario domain.Scenario
	if err := json.Unmarshal(payload, &scenario); err != nil {
		return domain.Scenario{}, false
	}
	return scenario, true
}

func (r *ScenarioRepository) key(scenarioID string) string {
	return "scenario:" + scenarioID
}

func (r *ScenarioRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
