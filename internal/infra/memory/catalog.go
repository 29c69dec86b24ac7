package memory

import (
	"context"
	"fmt"
	"sort"

	"velora-scenario-service/internal/catalog"
	"velora-scenario-service/internal/domain"
)

// StaticCatalog serves a catalog bundle held in memory (useful for tests/demos and
// deployments without Postgres).
type StaticCatalog struct {
	tracks    []domain.Track
	scenarios map[string]domain.Scenario
	ordered   []domain.Scenario
	questions map[string]questionRef
}

type questionRef struct {
	prompt   string
	scenario domain.Scenario
}

func NewStaticCatalog(bundle catalog.Bundle) *StaticCatalog {
	c := &StaticCatalog{
		tracks:    append([]domain.Track(nil), bundle.Tracks...),
		scenarios: make(map[string]domain.Scenario, len(bundle.Scenarios)),
		questions: make(map[string]questionRef),
	}
	for _, s := range bundle.Scenarios {
		c.scenarios[s.ID] = s
		c.ordered = append(c.ordered, s)
		for _, q := range s.Questions {
			c.questions[q.ID] = questionRef{prompt: q.Prompt, scenario: s}
		}
	}
	sort.SliceStable(c.tracks, func(i, j int) bool { return c.tracks[i].Order < c.tracks[j].Order })
	sort.SliceStable(c.ordered, func(i, j int) bool { return c.ordered[i].Order < c.ordered[j].Order })
	return c
}

func (c *StaticCatalog) LoadScenario(_ context.Context, scenarioID string) (domain.Scenario, error) {
	if s, ok := c.scenarios[scenarioID]; ok {
		return s, nil
	}
	return domain.Scenario{}, fmt.Errorf("scenario %s: %w", scenarioID, domain.ErrScenarioNotFound)
}

func (c *StaticCatalog) ListTracks(_ context.Context) ([]domain.TrackSummary, error) {
	out := make([]domain.TrackSummary, 0, len(c.tracks))
	for _, t := range c.tracks {
		count := 0
		for _, s := range c.ordered {
			if s.TrackID == t.ID {
				count++
			}
		}
		out = append(out, domain.TrackSummary{Track: t, ScenarioCount: count})
	}
	return out, nil
}

func (c *StaticCatalog) TrackBySlug(_ context.Context, slug string) (domain.TrackDetail, error) {
	for _, t := range c.tracks {
		if t.Slug != slug {
			continue
		}
		detail := domain.TrackDetail{Track: t, Scenarios: []domain.ScenarioRef{}}
		for _, s := range c.ordered {
			if s.TrackID == t.ID {
				detail.Scenarios = append(detail.Scenarios, s.Ref())
			}
		}
		return detail, nil
	}
	return domain.TrackDetail{}, fmt.Errorf("track %s: %w", slug, domain.ErrTrackNotFound)
}

func (c *StaticCatalog) FirstScenario(_ context.Context) (domain.ScenarioRef, error) {
	if len(c.ordered) == 0 {
		return domain.ScenarioRef{}, domain.ErrScenarioNotFound
	}
	return c.ordered[0].Ref(), nil
}

func (c *StaticCatalog) CountQuestions(_ context.Context) (int, error) {
	return len(c.questions), nil
}

// entryFor enriches a progress row with where its question lives.
func (c *StaticCatalog) entryFor(p domain.Progress) domain.ProgressEntry {
	entry := domain.ProgressEntry{Progress: p}
	if ref, ok := c.questions[p.QuestionID]; ok {
		entry.Prompt = ref.prompt
		entry.ScenarioID = ref.scenario.ID
		entry.ScenarioCode = ref.scenario.Code
		entry.ScenarioTitle = ref.scenario.Title
		entry.TrackTitle = ref.scenario.TrackTitle
		entry.TrackSlug = ref.scenario.TrackSlug
	}
	return entry
}
