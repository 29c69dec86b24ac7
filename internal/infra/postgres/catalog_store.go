package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"velora-scenario-service/internal/catalog"
	"velora-scenario-service/internal/domain"
)

// CatalogStore reads and seeds the relational catalog through bun.
type CatalogStore struct {
	db *bun.DB
}

func NewCatalogStore(db *bun.DB) *CatalogStore {
	return &CatalogStore{db: db}
}

// LoadScenario assembles a scenario with its ordered questions, options and explanations.
func (s *CatalogStore) LoadScenario(ctx context.Context, scenarioID string) (domain.Scenario, error) {
	var row scenarioRow
	err := s.db.NewSelect().Model(&row).Where("s.id = ?", scenarioID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Scenario{}, fmt.Errorf("scenario %s: %w", scenarioID, domain.ErrScenarioNotFound)
	}
	if err != nil {
		return domain.Scenario{}, fmt.Errorf("load scenario: %w", err)
	}
	var track trackRow
	if err := s.db.NewSelect().Model(&track).Where("t.id = ?", row.TrackID).Scan(ctx); err != nil {
		return domain.Scenario{}, fmt.Errorf("load track: %w", err)
	}
	scenario := scenarioFromRows(row, track)

	var questions []questionRow
	if err := s.db.NewSelect().Model(&questions).
		Where("q.scenario_id = ?", scenarioID).
		Order("q.sort_order ASC", "q.id ASC").
		Scan(ctx); err != nil {
		return domain.Scenario{}, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return scenario, nil
	}

	ids := make([]string, 0, len(questions))
	for _, q := range questions {
		ids = append(ids, q.ID)
	}
	var options []optionRow
	if err := s.db.NewSelect().Model(&options).
		Where("o.question_id IN (?)", bun.In(ids)).
		Order("o.label ASC").
		Scan(ctx); err != nil {
		return domain.Scenario{}, fmt.Errorf("load options: %w", err)
	}
	var explanations []explanationRow
	if err := s.db.NewSelect().Model(&explanations).
		Where("e.question_id IN (?)", bun.In(ids)).
		Scan(ctx); err != nil {
		return domain.Scenario{}, fmt.Errorf("load explanations: %w", err)
	}

	optionsByQuestion := make(map[string][]domain.AnswerOption, len(questions))
	for _, o := range options {
		optionsByQuestion[o.QuestionID] = append(optionsByQuestion[o.QuestionID], o.toDomain())
	}
	explanationByQuestion := make(map[string]domain.Explanation, len(explanations))
	for _, e := range explanations {
		explanationByQuestion[e.QuestionID] = e.toDomain()
	}
	for _, q := range questions {
		scenario.Questions = append(scenario.Questions, domain.Question{
			ID:          q.ID,
			Prompt:      q.Prompt,
			Order:       q.SortOrder,
			Options:     optionsByQuestion[q.ID],
			Explanation: explanationByQuestion[q.ID],
		})
	}
	return scenario, nil
}

func (s *CatalogStore) ListTracks(ctx context.Context) ([]domain.TrackSummary, error) {
	var tracks []trackRow
	if err := s.db.NewSelect().Model(&tracks).Order("t.sort_order ASC", "t.id ASC").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list tracks: %w", err)
	}
	var counts []struct {
		TrackID string `bun:"track_id"`
		N       int    `bun:"n"`
	}
	if err := s.db.NewSelect().
		TableExpr("scenarios").
		ColumnExpr("track_id, count(*) AS n").
		Group("track_id").
		Scan(ctx, &counts); err != nil {
		return nil, fmt.Errorf("count scenarios: %w", err)
	}
	byTrack := make(map[string]int, len(counts))
	for _, c := range counts {
		byTrack[c.TrackID] = c.N
	}
	out := make([]domain.TrackSummary, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, domain.TrackSummary{Track: t.toDomain(), ScenarioCount: byTrack[t.ID]})
	}
	return out, nil
}

func (s *CatalogStore) TrackBySlug(ctx context.Context, slug string) (domain.TrackDetail, error) {
	var track trackRow
	err := s.db.NewSelect().Model(&track).Where("t.slug = ?", slug).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.TrackDetail{}, fmt.Errorf("track %s: %w", slug, domain.ErrTrackNotFound)
	}
	if err != nil {
		return domain.TrackDetail{}, fmt.Errorf("load track: %w", err)
	}
	var scenarios []scenarioRow
	if err := s.db.NewSelect().Model(&scenarios).
		Where("s.track_id = ?", track.ID).
		Order("s.sort_order ASC", "s.id ASC").
		Scan(ctx); err != nil {
		return domain.TrackDetail{}, fmt.Errorf("list scenarios: %w", err)
	}
	detail := domain.TrackDetail{Track: track.toDomain(), Scenarios: make([]domain.ScenarioRef, 0, len(scenarios))}
	for _, sc := range scenarios {
		detail.Scenarios = append(detail.Scenarios, scenarioFromRows(sc, track).Ref())
	}
	return detail, nil
}

// FirstScenario is the lowest-ordered scenario of the lowest-ordered track.
func (s *CatalogStore) FirstScenario(ctx context.Context) (domain.ScenarioRef, error) {
	var row scenarioRow
	err := s.db.NewSelect().Model(&row).
		Join("JOIN tracks AS t ON t.id = s.track_id").
		Order("t.sort_order ASC", "s.sort_order ASC", "s.id ASC").
		Limit(1).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ScenarioRef{}, domain.ErrScenarioNotFound
	}
	if err != nil {
		return domain.ScenarioRef{}, fmt.Errorf("first scenario: %w", err)
	}
	return scenarioFromRows(row, trackRow{}).Ref(), nil
}

func (s *CatalogStore) CountQuestions(ctx context.Context) (int, error) {
	n, err := s.db.NewSelect().Model((*questionRow)(nil)).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count questions: %w", err)
	}
	return n, nil
}

// Seed upserts every row of bundle in one transaction. Existing rows keep their
// ids so recorded progress stays attached.
func (s *CatalogStore) Seed(ctx context.Context, bundle catalog.Bundle) error {
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, t := range bundle.Tracks {
			row := trackRow{ID: t.ID, Slug: t.Slug, Title: t.Title, Description: t.Description, SortOrder: t.Order}
			if err := upsert(ctx, tx, &row, "id", "slug", "title", "description", "sort_order"); err != nil {
				return fmt.Errorf("seed track %s: %w", t.ID, err)
			}
		}
		for _, sc := range bundle.Scenarios {
			if err := seedScenario(ctx, tx, sc); err != nil {
				return err
			}
		}
		return nil
	})
}

func seedScenario(ctx context.Context, tx bun.Tx, sc domain.Scenario) error {
	row := scenarioRow{
		ID:           sc.ID,
		TrackID:      sc.TrackID,
		Code:         sc.Code,
		Title:        sc.Title,
		Context:      sc.Context,
		Assumptions:  sc.Assumptions,
		TriggerEvent: sc.TriggerEvent,
		Difficulty:   string(sc.Difficulty),
		SortOrder:    sc.Order,
	}
	if row.Assumptions == nil {
		row.Assumptions = []string{}
	}
	if err := upsert(ctx, tx, &row, "id", "track_id", "code", "title", "context", "assumptions", "trigger_event", "difficulty", "sort_order"); err != nil {
		return fmt.Errorf("seed scenario %s: %w", sc.ID, err)
	}
	for _, q := range sc.Questions {
		qrow := questionRow{ID: q.ID, ScenarioID: sc.ID, Prompt: q.Prompt, SortOrder: q.Order}
		if err := upsert(ctx, tx, &qrow, "id", "scenario_id", "prompt", "sort_order"); err != nil {
			return fmt.Errorf("seed question %s: %w", q.ID, err)
		}
		// labels may move between options, so replace the question's options wholesale
		if _, err := tx.NewDelete().Model((*optionRow)(nil)).Where("question_id = ?", q.ID).Exec(ctx); err != nil {
			return fmt.Errorf("clear options %s: %w", q.ID, err)
		}
		for _, o := range q.Options {
			orow := optionRow{
				ID:                   o.ID,
				QuestionID:           q.ID,
				Label:                o.Label,
				Text:                 o.Text,
				IsCorrect:            o.Correct,
				Correctness:          string(o.Correctness),
				LegalAccuracy:        o.Scores.LegalAccuracy,
				MarketPractice:       o.Scores.MarketPractice,
				RiskAwareness:        o.Scores.RiskAwareness,
				PerspectiveAwareness: o.Scores.PerspectiveAwareness,
				Composite:            o.Scores.Composite,
				WrongExplanation:     o.WrongExplanation,
			}
			if _, err := tx.NewInsert().Model(&orow).Exec(ctx); err != nil {
				return fmt.Errorf("seed option %s: %w", o.ID, err)
			}
		}
		erow := explanationRow{
			QuestionID:          q.ID,
			CorrectExplanation:  q.Explanation.CorrectExplanation,
			LenderPerspective:   q.Explanation.LenderPerspective,
			BorrowerPerspective: q.Explanation.BorrowerPerspective,
			LearningOutcome:     q.Explanation.LearningOutcome,
		}
		if err := upsert(ctx, tx, &erow, "question_id", "correct_explanation", "lender_perspective", "borrower_perspective", "learning_outcome"); err != nil {
			return fmt.Errorf("seed explanation %s: %w", q.ID, err)
		}
	}
	return nil
}

// upsert inserts model and on a key conflict overwrites the remaining columns.
func upsert(ctx context.Context, tx bun.Tx, model interface{}, key string, columns ...string) error {
	q := tx.NewInsert().Model(model).On("CONFLICT (" + key + ") DO UPDATE")
	for _, col := range columns {
		q = q.Set(col + " = EXCLUDED." + col)
	}
	_, err := q.Exec(ctx)
	return err
}
