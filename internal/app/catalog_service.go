package app

import (
	"context"
	"math"

	"velora-scenario-service/internal/domain"
)

// Catalog reads the browsable structure of tracks and scenarios.
type Catalog interface {
	ListTracks(ctx context.Context) ([]domain.TrackSummary, error)
	TrackBySlug(ctx context.Context, slug string) (domain.TrackDetail, error)
	FirstScenario(ctx context.Context) (domain.ScenarioRef, error)
	CountQuestions(ctx context.Context) (int, error)
}

// ProgressReader lists a user's progress rows, newest first.
type ProgressReader interface {
	ListProgress(ctx context.Context, userID string) ([]domain.ProgressEntry, error)
}

// CatalogService serves the read-only pages around a scenario.
type CatalogService struct {
	catalog   Catalog
	scenarios ScenarioRepository
	progress  ProgressReader
}

func NewCatalogService(catalog Catalog, scenarios ScenarioRepository, progress ProgressReader) *CatalogService {
	return &CatalogService{catalog: catalog, scenarios: scenarios, progress: progress}
}

func (s *CatalogService) ListTracks(ctx context.Context) ([]domain.TrackSummary, error) {
	return s.catalog.ListTracks(ctx)
}

func (s *CatalogService) Track(ctx context.Context, slug string) (domain.TrackDetail, error) {
	return s.catalog.TrackBySlug(ctx, slug)
}

func (s *CatalogService) FirstScenario(ctx context.Context) (domain.ScenarioRef, error) {
	return s.catalog.FirstScenario(ctx)
}

// PublicQuestion is a question without anything a reveal would expose.
type PublicQuestion struct {
	ID      string         `json:"id"`
	Prompt  string         `json:"prompt"`
	Order   int            `json:"order"`
	Options []PublicOption `json:"options"`
}

// PublicOption is an option without correctness or scores.
type PublicOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Text  string `json:"text"`
}

// PublicScenario is the scenario page: fact pattern plus unanswered questions.
type PublicScenario struct {
	ID           string            `json:"id"`
	Code         string            `json:"code"`
	Title        string            `json:"title"`
	TrackSlug    string            `json:"trackSlug"`
	TrackTitle   string            `json:"trackTitle"`
	Context      string            `json:"context"`
	Assumptions  []string          `json:"assumptions"`
	TriggerEvent string            `json:"triggerEvent"`
	Difficulty   domain.Difficulty `json:"difficulty"`
	Questions    []PublicQuestion  `json:"questions"`
}

// Scenario returns the public form of a scenario.
func (s *CatalogService) Scenario(ctx context.Context, scenarioID string) (PublicScenario, error) {
	scenario, err := s.scenarios.GetScenario(ctx, scenarioID)
	if err != nil {
		return PublicScenario{}, err
	}
	out := PublicScenario{
		ID:           scenario.ID,
		Code:         scenario.Code,
		Title:        scenario.Title,
		TrackSlug:    scenario.TrackSlug,
		TrackTitle:   scenario.TrackTitle,
		Context:      scenario.Context,
		Assumptions:  scenario.Assumptions,
		TriggerEvent: scenario.TriggerEvent,
		Difficulty:   scenario.Difficulty,
		Questions:    make([]PublicQuestion, 0, len(scenario.Questions)),
	}
	for _, q := range scenario.Questions {
		pq := PublicQuestion{ID: q.ID, Prompt: q.Prompt, Order: q.Order}
		for _, opt := range domain.SortedOptions(q.Options) {
			pq.Options = append(pq.Options, PublicOption{ID: opt.ID, Label: opt.Label, Text: opt.Text})
		}
		out.Questions = append(out.Questions, pq)
	}
	return out, nil
}

// Dashboard summarizes an identified user's answered questions.
func (s *CatalogService) Dashboard(ctx context.Context, userID string) (domain.Dashboard, error) {
	if userID == "" {
		return domain.Dashboard{}, domain.ErrUnauthenticated
	}
	entries, err := s.progress.ListProgress(ctx, userID)
	if err != nil {
		return domain.Dashboard{}, err
	}
	total, err := s.catalog.CountQuestions(ctx)
	if err != nil {
		return domain.Dashboard{}, err
	}

	sum := 0
	for i := range entries {
		entries[i].Band = domain.BandFor(entries[i].CompositeScore)
		sum += entries[i].CompositeScore
	}
	stats := domain.DashboardStats{TotalAnswered: len(entries), TotalQuestions: total}
	if len(entries) > 0 {
		stats.AverageScore = math.Round(float64(sum)/float64(len(entries))*100) / 100
	}
	if entries == nil {
		entries = []domain.ProgressEntry{}
	}
	return domain.Dashboard{UserID: userID, Stats: stats, Entries: entries}, nil
}
