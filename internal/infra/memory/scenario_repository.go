package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"velora-scenario-service/internal/domain"
)

// ScenarioLoader fetches scenario content from a backing store.
type ScenarioLoader interface {
	LoadScenario(ctx context.Context, scenarioID string) (domain.Scenario, error)
}

// ScenarioRepository caches scenarios with TTL to avoid repeated DB hits.
type ScenarioRepository struct {
	loader ScenarioLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedScenario
}

type cachedScenario struct {
	scenario  domain.Scenario
	expiresAt time.Time
}

func NewScenarioRepository(loader ScenarioLoader, ttl time.Duration) *ScenarioRepository {
	return &ScenarioRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedScenario),
	}
}

func (r *ScenarioRepository) GetScenario(ctx context.Context, scenarioID string) (domain.Scenario, error) {
	if scenario, ok := r.cached(scenarioID); ok {
		return scenario, nil
	}

	result, err, _ := r.sf.Do(scenarioID, func() (interface{}, error) {
		if scenario, ok := r.cached(scenarioID); ok {
			return scenario, nil
		}

		scenario, err := r.loader.LoadScenario(ctx, scenarioID)
		if err != nil {
			return domain.Scenario{}, err
		}

		r.mu.Lock()
		r.cache[scenarioID] = cachedScenario{
			scenario:  scenario,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return scenario, nil
	})
	if err != nil {
		return domain.Scenario{}, err
	}
	return result.(domain.Scenario), nil
}

func (r *ScenarioRepository) cached(scenarioID string) (domain.Scenario, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[scenarioID]; ok && entry.expiresAt.After(now) {
		return entry.scenario, true
	}
	return domain.Scenario{}, false
}

func (r *ScenarioRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
